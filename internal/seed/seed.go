// Package seed loads a catalog fixture (seat types, halls with their
// seat layout, movies and shows) from YAML into the catalog store.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
)

// File is the YAML document layout.
type File struct {
	SeatTypes []SeatTypeDef `yaml:"seat_types"`
	Halls     []HallDef     `yaml:"halls"`
	Movies    []MovieDef    `yaml:"movies"`
	Shows     []ShowDef     `yaml:"shows"`
}

type SeatTypeDef struct {
	Title          string `yaml:"title"`
	PremiumPercent int    `yaml:"premium_percent"`
}

// HallDef describes a hall row by row.  Rows without a label are
// lettered A, B, ... Z, AA, AB in order.
type HallDef struct {
	Name string   `yaml:"name"`
	Rows []RowDef `yaml:"rows"`
}

type RowDef struct {
	Label    string `yaml:"label"`
	Seats    int    `yaml:"seats"`
	SeatType string `yaml:"seat_type"`
}

type MovieDef struct {
	Name        string `yaml:"name"`
	DurationMin int    `yaml:"duration_min"`
}

type ShowDef struct {
	Hall           string    `yaml:"hall"`
	Movie          string    `yaml:"movie"`
	StartsAt       time.Time `yaml:"starts_at"`
	BasePriceCents int64     `yaml:"base_price_cents"`
}

// Store is the write side of the catalog.
type Store interface {
	CreateSeatType(ctx context.Context, st *model.SeatType) error
	HallExists(ctx context.Context, name string) (bool, error)
	CreateHall(ctx context.Context, h *model.Hall) error
	CreateSeats(ctx context.Context, seats []model.Seat) error
	CreateMovie(ctx context.Context, m *model.Movie) error
	CreateShow(ctx context.Context, s *model.Show) error
}

// Summary counts what Apply created.
type Summary struct {
	SeatTypes, Halls, Seats, Movies, Shows int
}

// Parse decodes and validates a fixture.  Unknown keys are rejected.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty seed file")
		}
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks names are unique and every reference resolves.
func (f *File) Validate() error {
	seatTypes := make(map[string]bool, len(f.SeatTypes))
	for _, st := range f.SeatTypes {
		if st.Title == "" {
			return errors.New("seat type without title")
		}
		if seatTypes[st.Title] {
			return fmt.Errorf("seat type %q declared twice", st.Title)
		}
		if st.PremiumPercent < 0 {
			return fmt.Errorf("seat type %q: premium_percent must not be negative", st.Title)
		}
		seatTypes[st.Title] = true
	}

	halls := make(map[string]bool, len(f.Halls))
	for _, h := range f.Halls {
		if h.Name == "" {
			return errors.New("hall without name")
		}
		if halls[h.Name] {
			return fmt.Errorf("hall %q declared twice", h.Name)
		}
		halls[h.Name] = true
		if len(h.Rows) == 0 {
			return fmt.Errorf("hall %q has no rows", h.Name)
		}
		labels := make(map[string]bool)
		for i, row := range h.Rows {
			if row.Seats <= 0 {
				return fmt.Errorf("hall %q row %d: seats must be positive", h.Name, i+1)
			}
			if !seatTypes[row.SeatType] {
				return fmt.Errorf("hall %q row %d: unknown seat type %q", h.Name, i+1, row.SeatType)
			}
			label := rowLabel(row, i)
			if labels[label] {
				return fmt.Errorf("hall %q: row %s declared twice", h.Name, label)
			}
			labels[label] = true
		}
	}

	movies := make(map[string]bool, len(f.Movies))
	for _, m := range f.Movies {
		if m.Name == "" {
			return errors.New("movie without name")
		}
		if movies[m.Name] {
			return fmt.Errorf("movie %q declared twice", m.Name)
		}
		if m.DurationMin <= 0 {
			return fmt.Errorf("movie %q: duration_min must be positive", m.Name)
		}
		movies[m.Name] = true
	}

	for i, s := range f.Shows {
		if !halls[s.Hall] {
			return fmt.Errorf("show %d: unknown hall %q", i+1, s.Hall)
		}
		if !movies[s.Movie] {
			return fmt.Errorf("show %d: unknown movie %q", i+1, s.Movie)
		}
		if s.StartsAt.IsZero() {
			return fmt.Errorf("show %d: starts_at is required", i+1)
		}
		if s.BasePriceCents <= 0 {
			return fmt.Errorf("show %d: base_price_cents must be positive", i+1)
		}
	}
	return nil
}

// Apply writes the fixture through store in dependency order.  Halls
// that already exist are an error: seeding is meant for an empty
// catalog and seat layouts are never reconfigured.
func Apply(ctx context.Context, store Store, f *File) (Summary, error) {
	var sum Summary

	seatTypeIDs := make(map[string]uint64, len(f.SeatTypes))
	for _, def := range f.SeatTypes {
		st := &model.SeatType{Title: def.Title, PremiumPercent: def.PremiumPercent}
		if err := store.CreateSeatType(ctx, st); err != nil {
			return sum, fmt.Errorf("create seat type %q: %w", def.Title, err)
		}
		seatTypeIDs[def.Title] = st.ID
		sum.SeatTypes++
	}

	hallIDs := make(map[string]uint64, len(f.Halls))
	for _, def := range f.Halls {
		exists, err := store.HallExists(ctx, def.Name)
		if err != nil {
			return sum, fmt.Errorf("lookup hall %q: %w", def.Name, err)
		}
		if exists {
			return sum, fmt.Errorf("hall %q already exists", def.Name)
		}
		h := &model.Hall{Name: def.Name}
		if err := store.CreateHall(ctx, h); err != nil {
			return sum, fmt.Errorf("create hall %q: %w", def.Name, err)
		}
		hallIDs[def.Name] = h.ID
		sum.Halls++

		seats := Layout(h.ID, def, seatTypeIDs)
		if err := store.CreateSeats(ctx, seats); err != nil {
			return sum, fmt.Errorf("create seats of hall %q: %w", def.Name, err)
		}
		sum.Seats += len(seats)
	}

	movies := make(map[string]*model.Movie, len(f.Movies))
	for _, def := range f.Movies {
		m := &model.Movie{Name: def.Name, DurationMin: def.DurationMin}
		if err := store.CreateMovie(ctx, m); err != nil {
			return sum, fmt.Errorf("create movie %q: %w", def.Name, err)
		}
		movies[def.Name] = m
		sum.Movies++
	}

	for _, def := range f.Shows {
		s := &model.Show{
			HallID:         hallIDs[def.Hall],
			MovieID:        movies[def.Movie].ID,
			StartsAt:       def.StartsAt.UTC(),
			BasePriceCents: def.BasePriceCents,
		}
		if err := store.CreateShow(ctx, s); err != nil {
			return sum, fmt.Errorf("create show %q in hall %q at %s: %w",
				def.Movie, def.Hall, s.StartsAt.Format(time.RFC3339), err)
		}
		sum.Shows++
	}
	return sum, nil
}

// Layout expands a hall def into seats labelled row+number ("A1")
// with positions running across the whole hall.
func Layout(hallID uint64, def HallDef, seatTypeIDs map[string]uint64) []model.Seat {
	var seats []model.Seat
	pos := uint32(0)
	for i, row := range def.Rows {
		label := rowLabel(row, i)
		for n := 1; n <= row.Seats; n++ {
			pos++
			seats = append(seats, model.Seat{
				HallID:     hallID,
				Label:      label + strconv.Itoa(n),
				SeatTypeID: seatTypeIDs[row.SeatType],
				Position:   pos,
			})
		}
	}
	return seats
}

func rowLabel(row RowDef, i int) string {
	if l := strings.ToUpper(strings.TrimSpace(row.Label)); l != "" {
		return l
	}
	return indexToRowLabel(i)
}

// indexToRowLabel converts a zero-based index to an alphabetical row
// label like A, B, AA.
func indexToRowLabel(i int) string {
	if i < 0 {
		return ""
	}
	res := []rune{}
	for {
		rem := i % 26
		res = append(res, rune('A'+rem))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
		res[j], res[k] = res[k], res[j]
	}
	return string(res)
}
