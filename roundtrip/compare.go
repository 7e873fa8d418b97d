// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package roundtrip

import (
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// maxReported caps the rows listed in a MismatchError message.
const maxReported = 5

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// RowCount is one distinct row and how often each side held it.
type RowCount struct {
	Row  string
	Want int
	Got  int
}

// MismatchError reports rows whose multiplicity differs between the
// original and reloaded collections.
type MismatchError struct {
	Frame string
	// Missing rows occur fewer times in the reloaded collection.
	Missing []RowCount
	// Unexpected rows occur more times in the reloaded collection.
	Unexpected []RowCount
}

func (e *MismatchError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "roundtrip %q: %d missing, %d unexpected row(s)", e.Frame, len(e.Missing), len(e.Unexpected))
	write := func(label string, rows []RowCount) {
		for i, rc := range rows {
			if i == maxReported {
				fmt.Fprintf(&sb, "\n  ... %d more %s", len(rows)-maxReported, label)
				return
			}
			fmt.Fprintf(&sb, "\n  %s (want %d, got %d): %s", label, rc.Want, rc.Got, rc.Row)
		}
	}
	write("missing", e.Missing)
	write("unexpected", e.Unexpected)
	return sb.String()
}

type tally struct {
	row       string
	want, got int
}

// counter tallies rows by key, keeping first-seen order.
type counter struct {
	order []string
	rows  map[string]*tally
}

func newCounter() *counter {
	return &counter{rows: map[string]*tally{}}
}

func (c *counter) add(key, row string, want, got int) {
	t, ok := c.rows[key]
	if !ok {
		t = &tally{row: row}
		c.rows[key] = t
		c.order = append(c.order, key)
	}
	t.want += want
	t.got += got
}

func (c *counter) mismatch(name string) error {
	e := &MismatchError{Frame: name}
	for _, key := range c.order {
		t := c.rows[key]
		rc := RowCount{Row: t.row, Want: t.want, Got: t.got}
		switch {
		case t.want > t.got:
			e.Missing = append(e.Missing, rc)
		case t.got > t.want:
			e.Unexpected = append(e.Unexpected, rc)
		}
	}
	if len(e.Missing) == 0 && len(e.Unexpected) == 0 {
		return nil
	}
	return e
}

func rowKey(v any) (string, error) {
	b, err := encMode.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Equal compares two row collections as multisets.
func Equal[T any](want, got []T) error {
	c := newCounter()
	for _, side := range []struct {
		rows      []T
		want, got int
	}{{want, 1, 0}, {got, 0, 1}} {
		for i, row := range side.rows {
			key, err := rowKey(row)
			if err != nil {
				return fmt.Errorf("roundtrip: encode row %d: %w", i, err)
			}
			c.add(key, fmt.Sprintf("%+v", row), side.want, side.got)
		}
	}
	return c.mismatch("")
}
