/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package crossmatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/melvkunst/tcc/hla"
	"github.com/melvkunst/tcc/logging"
)

// AnyField1 is the numero value meaning "any group"; such entries are ignored.
const AnyField1 = "0"

// AlleleRequest is one requested donor specificity group.
type AlleleRequest struct {
	Tipo   string `json:"tipo"`
	Numero string `json:"numero"`
}

// UnmarshalJSON accepts numero as a JSON string or number.
func (a *AlleleRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Tipo   string          `json:"tipo"`
		Numero json.RawMessage `json:"numero"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	a.Tipo = raw.Tipo
	a.Numero = ""

	numero := bytes.TrimSpace(raw.Numero)
	if len(numero) == 0 || bytes.Equal(numero, []byte("null")) {
		return nil
	}

	if numero[0] == '"' {
		return json.Unmarshal(numero, &a.Numero)
	}

	var n json.Number
	if err := json.Unmarshal(numero, &n); err != nil {
		return fmt.Errorf("numero must be a string or number: %w", err)
	}

	a.Numero = n.String()

	return nil
}

// Request is the donor criteria of a virtual crossmatch.
type Request struct {
	DonorBloodType string          `json:"donor_blood_type"`
	Alelos         []AlleleRequest `json:"alelos"`
}

// Groups returns the distinct (locus, field1) groups to match. Entries with
// field1 0, an empty locus or a non-integer numero are skipped.
func (r Request) Groups(logger *log.Logger) []hla.Key {
	if logger == nil {
		logger = logging.Discard()
	}

	seen := make(map[hla.Key]struct{}, len(r.Alelos))
	groups := make([]hla.Key, 0, len(r.Alelos))

	for _, a := range r.Alelos {
		numero := strings.TrimSpace(a.Numero)
		locus := strings.ToUpper(strings.TrimSpace(a.Tipo))

		if numero == AnyField1 {
			continue
		}

		field1, err := strconv.Atoi(numero)
		if err != nil || field1 < 0 || field1 > hla.MaxField {
			logger.Warn("Ignoring requested allele with invalid numero", "tipo", a.Tipo, "numero", a.Numero)
			continue
		}

		if field1 == 0 {
			continue
		}

		if locus == "" {
			logger.Warn("Ignoring requested allele without tipo", "numero", a.Numero)
			continue
		}

		key := hla.Key{Locus: locus, Field1: field1}
		if _, ok := seen[key]; ok {
			continue
		}

		seen[key] = struct{}{}
		groups = append(groups, key)
	}

	return groups
}
