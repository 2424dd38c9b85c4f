package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const maxBodyBytes = 64 << 10

// input is a flat view over a form or JSON object body.
type input map[string]string

// readInput accepts application/json objects and url-encoded or multipart forms.
// Non-scalar JSON values are ignored.
func readInput(w http.ResponseWriter, r *http.Request) (input, error) {
	in := input{}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		var raw map[string]any
		if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		for k, v := range raw {
			switch val := v.(type) {
			case string:
				in[k] = val
			case json.Number:
				in[k] = val.String()
			case bool:
				in[k] = strconv.FormatBool(val)
			}
		}
		return in, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	for k, vs := range r.PostForm {
		if len(vs) > 0 {
			in[k] = vs[0]
		}
	}
	return in, nil
}

func (in input) has(key string) bool {
	_, ok := in[key]
	return ok
}

func (in input) int(key string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(in[key]))
	return v, err == nil
}

func (in input) float(key string) *float64 {
	raw := strings.TrimSpace(in[key])
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

func (in input) decimal(key string) (decimal.Decimal, bool) {
	raw := strings.TrimSpace(in[key])
	if raw == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
