package infrastructure

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalogue is the configuration table of datasets the aggregator counts.
type Catalogue struct {
	Endpoints []Endpoint      `json:"endpoints" yaml:"endpoints"`
	Charging  ChargingDataset `json:"charging" yaml:"charging"`
}

// Lyon arrondissement INSEE codes.
var lyonDistricts = []string{
	"69381", "69382", "69383", "69384", "69385",
	"69386", "69387", "69388", "69389",
}

// DefaultCatalogue returns the Grand Lyon datasets shown on the site.
func DefaultCatalogue() Catalogue {
	districts := make([]string, len(lyonDistricts))
	copy(districts, lyonDistricts)

	return Catalogue{
		Endpoints: []Endpoint{
			{
				Key:         "parcs",
				Name:        "Parcs et Jardins",
				TypeName:    "metropole-de-lyon:com_donnees_communales.comparcjardin_1_0_0",
				Description: "Parcs, jardins et squares publics",
			},
			{
				Key:         "bancs",
				Name:        "Bancs Publics",
				TypeName:    "metropole-de-lyon:adr_voie_lieu.adrbanc_latest",
				Description: "Bancs installés sur l'espace public",
			},
			{
				Key:         "fontaines",
				Name:        "Fontaines à boire",
				TypeName:    "metropole-de-lyon:adr_voie_lieu.adrbornefontaine_latest",
				Description: "Bornes fontaines d'eau potable",
			},
			{
				Key:         "fontaines-ornementales",
				Name:        "Fontaines Ornementales",
				TypeName:    "metropole-de-lyon:adr_voie_lieu.adrfontaineornementale_latest",
				Description: "Fontaines décoratives et bassins",
			},
			{
				Key:         "toilettes",
				Name:        "Toilettes Publiques",
				TypeName:    "metropole-de-lyon:adr_voie_lieu.adrtoilettepublique_latest",
				Description: "Sanitaires publics",
			},
			{
				Key:         "corbeilles",
				Name:        "Corbeilles",
				TypeName:    "metropole-de-lyon:gin_nettoiement.gincorbeille",
				Description: "Corbeilles de propreté",
			},
			{
				Key:         "silos-verre",
				Name:        "Silos à Verre",
				TypeName:    "metropole-de-lyon:gic_collecte.siloverre",
				Description: "Points de collecte du verre",
			},
			{
				Key:         "bornes-compost",
				Name:        "Bornes à Compost",
				TypeName:    "metropole-de-lyon:gic_collecte.bornecompost",
				Description: "Bornes de collecte des biodéchets",
			},
		},
		Charging: ChargingDataset{
			Name:          ChargingStationsName,
			TypeName:      "metropole-de-lyon:nrj_energie.nrjbornerecharge",
			Description:   "Stations de recharge pour véhicules électriques",
			CommuneField:  "code_insee_commune",
			OperatorField: "nom_operateur",
			PowerField:    "puissance_nominale",
			Districts:     districts,
		},
	}
}

// LoadCatalogue reads a catalogue from a YAML file. Charging fields left
// empty fall back to the defaults.
func LoadCatalogue(path string) (Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalogue{}, fmt.Errorf("read catalogue: %w", err)
	}
	return ParseCatalogue(data)
}

// ParseCatalogue decodes and validates a YAML catalogue.
func ParseCatalogue(data []byte) (Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalogue{}, fmt.Errorf("parse catalogue: %w", err)
	}

	defaults := DefaultCatalogue().Charging
	if c.Charging.Name == "" {
		c.Charging.Name = defaults.Name
	}
	if c.Charging.TypeName == "" {
		c.Charging.TypeName = defaults.TypeName
	}
	if c.Charging.CommuneField == "" {
		c.Charging.CommuneField = defaults.CommuneField
	}
	if c.Charging.OperatorField == "" {
		c.Charging.OperatorField = defaults.OperatorField
	}
	if c.Charging.PowerField == "" {
		c.Charging.PowerField = defaults.PowerField
	}
	if len(c.Charging.Districts) == 0 {
		c.Charging.Districts = defaults.Districts
	}

	if err := c.Validate(); err != nil {
		return Catalogue{}, err
	}
	return c, nil
}

// Validate checks that keys are present and unique and that every dataset
// has a typename.
func (c Catalogue) Validate() error {
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("catalogue has no endpoints")
	}

	seen := make(map[string]struct{}, len(c.Endpoints))
	for i, ep := range c.Endpoints {
		if ep.Key == "" {
			return fmt.Errorf("endpoint %d: missing key", i)
		}
		if ep.TypeName == "" {
			return fmt.Errorf("endpoint %q: missing typename", ep.Key)
		}
		if ep.Key == ChargingStationsKey {
			return fmt.Errorf("endpoint %q: key is reserved", ep.Key)
		}
		if _, dup := seen[ep.Key]; dup {
			return fmt.Errorf("endpoint %q: duplicate key", ep.Key)
		}
		seen[ep.Key] = struct{}{}
	}

	if c.Charging.TypeName == "" {
		return fmt.Errorf("charging dataset: missing typename")
	}
	return nil
}

// Lookup returns the endpoint registered under key.
func (c Catalogue) Lookup(key string) (Endpoint, bool) {
	for _, ep := range c.Endpoints {
		if ep.Key == key {
			return ep, true
		}
	}
	return Endpoint{}, false
}
