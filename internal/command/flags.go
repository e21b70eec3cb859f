package command

import (
	"github.com/urfave/cli/v2"

	"github.com/ecolyon/ecolyon/internal/config"
	"github.com/ecolyon/ecolyon/internal/infrastructure"
)

// ApplyFlags overrides cfg with the global flags that were set and validates
// the result.
func ApplyFlags(c *cli.Context, cfg *config.Config) error {
	if c.IsSet("wfs-url") {
		cfg.WFSBaseURL = c.String("wfs-url")
	}
	if c.IsSet("catalogue") {
		cfg.CatalogueFile = c.String("catalogue")
	}
	if c.IsSet("concurrency") {
		cfg.MaxConcurrency = c.Int("concurrency")
	}
	if c.IsSet("timeout") {
		cfg.RequestTimeout = c.Duration("timeout")
	}
	if c.IsSet("failure-policy") {
		policy, err := infrastructure.ParseFailurePolicy(c.String("failure-policy"))
		if err != nil {
			return err
		}
		cfg.FailurePolicy = policy
	}
	return cfg.Validate()
}
