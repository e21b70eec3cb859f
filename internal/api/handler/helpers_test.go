package handler_test

import (
	"encoding/json"
	"net/http/httptest"
)

func jsonDecode(rec *httptest.ResponseRecorder, dst any) error {
	return json.Unmarshal(rec.Body.Bytes(), dst)
}
