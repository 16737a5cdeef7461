// Package seed loads machine types, machines, rules and quotas from a YAML fixture file.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"makequeue-backend/internal/admin"
	"makequeue-backend/internal/logger"
	"makequeue-backend/internal/machine"
	"makequeue-backend/internal/model"
	"makequeue-backend/internal/store"
)

// File is the root of a fixture file.
type File struct {
	CoursePermissions []Permission  `yaml:"course_permissions"`
	MachineTypes      []MachineType `yaml:"machine_types"`
}

type Permission struct {
	ShortName string `yaml:"short_name"`
	Name      string `yaml:"name"`
}

type MachineType struct {
	Name             string    `yaml:"name"`
	UsageRequirement string    `yaml:"usage_requirement"`
	CannotUseText    string    `yaml:"cannot_use_text"`
	HasStream        bool      `yaml:"has_stream"`
	Priority         int       `yaml:"priority"`
	Rules            []Rule    `yaml:"rules"`
	Quotas           []Quota   `yaml:"quotas"`
	Machines         []Machine `yaml:"machines"`
}

type Rule struct {
	StartTime              string  `yaml:"start_time"`
	EndTime                string  `yaml:"end_time"`
	DaysChanged            int     `yaml:"days_changed"`
	StartDays              []int   `yaml:"start_days"`
	MaxHours               float64 `yaml:"max_hours"`
	MaxInsideBorderCrossed float64 `yaml:"max_inside_border_crossed"`
}

// Quota seeds an all-users quota unless Username is set.
type Quota struct {
	Username             string `yaml:"username"`
	NumberOfReservations int    `yaml:"number_of_reservations"`
	Diminishing          bool   `yaml:"diminishing"`
	IgnoreRules          bool   `yaml:"ignore_rules"`
}

type Machine struct {
	Name         string `yaml:"name"`
	MachineModel string `yaml:"machine_model"`
	StreamName   string `yaml:"stream_name"`
	Location     string `yaml:"location"`
	LocationURL  string `yaml:"location_url"`
	Internal     bool   `yaml:"internal"`
	Priority     *int   `yaml:"priority"`
}

// Load reads and parses a fixture file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a fixture document. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &f, nil
}

// Seeder writes fixtures through the same services the API uses, so every rule and
// quota is validated.
type Seeder struct {
	store    store.Store
	admin    *admin.Service
	machines *machine.Service
	logger   *slog.Logger
}

func NewSeeder(s store.Store, adminSvc *admin.Service, machines *machine.Service) *Seeder {
	return &Seeder{store: s, admin: adminSvc, machines: machines, logger: logger.WithComponent("seed")}
}

// Apply inserts the contents of f. Course permissions are upserted; everything else is created.
func (s *Seeder) Apply(ctx context.Context, f *File) error {
	for _, p := range f.CoursePermissions {
		perm := &model.CoursePermission{ShortName: p.ShortName, Name: p.Name}
		if err := s.store.UpsertCoursePermission(ctx, perm); err != nil {
			return err
		}
	}

	for _, mtSpec := range f.MachineTypes {
		mt, err := s.admin.CreateMachineType(ctx, admin.MachineTypeInput{
			Name:             mtSpec.Name,
			UsageRequirement: mtSpec.UsageRequirement,
			CannotUseText:    mtSpec.CannotUseText,
			HasStream:        mtSpec.HasStream,
			Priority:         mtSpec.Priority,
		})
		if err != nil {
			return fmt.Errorf("machine type %q: %w", mtSpec.Name, err)
		}

		for i, r := range mtSpec.Rules {
			rule, err := r.toModel()
			if err != nil {
				return fmt.Errorf("machine type %q rule %d: %w", mtSpec.Name, i+1, err)
			}
			if _, err := s.admin.CreateRule(ctx, mt.ID, rule); err != nil {
				return fmt.Errorf("machine type %q rule %d: %w", mtSpec.Name, i+1, err)
			}
		}

		for _, q := range mtSpec.Quotas {
			in := admin.QuotaInput{
				MachineTypeID:        mt.ID,
				All:                  q.Username == "",
				NumberOfReservations: q.NumberOfReservations,
				Diminishing:          q.Diminishing,
				IgnoreRules:          q.IgnoreRules,
			}
			if q.Username != "" {
				u, err := s.store.GetUserByUsername(ctx, q.Username)
				if err != nil {
					return fmt.Errorf("quota for %q: %w", q.Username, err)
				}
				in.UserID = &u.ID
			}
			if _, err := s.admin.CreateQuota(ctx, in); err != nil {
				return fmt.Errorf("machine type %q quota: %w", mtSpec.Name, err)
			}
		}

		for _, m := range mtSpec.Machines {
			_, err := s.machines.Create(ctx, machine.Input{
				Name:          m.Name,
				MachineTypeID: mt.ID,
				MachineModel:  m.MachineModel,
				StreamName:    m.StreamName,
				Location:      m.Location,
				LocationURL:   m.LocationURL,
				Internal:      m.Internal,
				Status:        model.StatusAvailable,
				Priority:      m.Priority,
			})
			if err != nil {
				return fmt.Errorf("machine %q: %w", m.Name, err)
			}
		}

		s.logger.Info("seeded machine type",
			"name", mt.Name, "rules", len(mtSpec.Rules), "quotas", len(mtSpec.Quotas), "machines", len(mtSpec.Machines))
	}
	return nil
}

func (r Rule) toModel() (model.ReservationRule, error) {
	start, err := model.ParseTimeOfDay(r.StartTime)
	if err != nil {
		return model.ReservationRule{}, err
	}
	end, err := model.ParseTimeOfDay(r.EndTime)
	if err != nil {
		return model.ReservationRule{}, err
	}
	for _, d := range r.StartDays {
		if d < 1 || d > 7 {
			return model.ReservationRule{}, fmt.Errorf("weekday %d out of range 1..7", d)
		}
	}
	return model.ReservationRule{
		StartTime:              start,
		EndTime:                end,
		DaysChanged:            r.DaysChanged,
		StartDays:              model.WeekdaysOf(r.StartDays...),
		MaxHours:               r.MaxHours,
		MaxInsideBorderCrossed: r.MaxInsideBorderCrossed,
	}, nil
}
