package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/Sokrates1989/backup-restore/internal/core"
	"github.com/Sokrates1989/backup-restore/internal/model"
	"github.com/Sokrates1989/backup-restore/internal/platform"
)

// seedConfig declares bootstrap targets, destinations and schedules. Applying
// a seed is idempotent: entries whose name already exists are skipped, never
// updated.
type seedConfig struct {
	Targets []struct {
		Name      string `yaml:"name"`
		Engine    string `yaml:"engine"`
		Host      string `yaml:"host"`
		Port      int    `yaml:"port"`
		Database  string `yaml:"database"`
		Username  string `yaml:"username"`
		SecretRef string `yaml:"secret_ref"`
	} `yaml:"targets"`
	Destinations []struct {
		Name      string `yaml:"name"`
		Kind      string `yaml:"kind"`
		Host      string `yaml:"host"`
		Port      int    `yaml:"port"`
		Path      string `yaml:"path"`
		Bucket    string `yaml:"bucket"`
		Region    string `yaml:"region"`
		Endpoint  string `yaml:"endpoint"`
		Username  string `yaml:"username"`
		SecretRef string `yaml:"secret_ref"`
	} `yaml:"destinations"`
	Schedules []struct {
		Name          string `yaml:"name"`
		Target        string `yaml:"target"`
		Destination   string `yaml:"destination"`
		Interval      string `yaml:"interval"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"schedules"`
}

func applySeed(ctx context.Context, path string, services *core.Services, logger zerolog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}

	var seed seedConfig
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	targets, err := services.Targets.List(ctx)
	if err != nil {
		return fmt.Errorf("list targets: %w", err)
	}
	targetIDs := map[string]string{}
	for _, t := range targets {
		targetIDs[t.Name] = t.ID
	}

	for _, t := range seed.Targets {
		if _, ok := targetIDs[t.Name]; ok {
			logger.Debug().Str("name", t.Name).Msg("seed target exists, skipping")
			continue
		}
		target := &model.Target{
			ID:        platform.NewID(),
			Name:      t.Name,
			Engine:    t.Engine,
			Host:      t.Host,
			Port:      t.Port,
			Database:  t.Database,
			Username:  t.Username,
			SecretRef: t.SecretRef,
			Active:    true,
		}
		if err := services.Targets.Create(ctx, target); err != nil {
			return fmt.Errorf("create target %q: %w", t.Name, err)
		}
		targetIDs[t.Name] = target.ID
		logger.Info().Str("name", t.Name).Str("id", target.ID).Msg("seed target created")
	}

	destinations, err := services.Destinations.List(ctx)
	if err != nil {
		return fmt.Errorf("list destinations: %w", err)
	}
	destinationIDs := map[string]string{model.LocalDestinationID: model.LocalDestinationID}
	for _, d := range destinations {
		destinationIDs[d.Name] = d.ID
	}

	for _, d := range seed.Destinations {
		if _, ok := destinationIDs[d.Name]; ok {
			logger.Debug().Str("name", d.Name).Msg("seed destination exists, skipping")
			continue
		}
		dest := &model.Destination{
			ID:        platform.NewID(),
			Name:      d.Name,
			Kind:      d.Kind,
			Host:      d.Host,
			Port:      d.Port,
			Path:      d.Path,
			Bucket:    d.Bucket,
			Region:    d.Region,
			Endpoint:  d.Endpoint,
			Username:  d.Username,
			SecretRef: d.SecretRef,
			Active:    true,
		}
		if err := services.Destinations.Create(ctx, dest); err != nil {
			return fmt.Errorf("create destination %q: %w", d.Name, err)
		}
		destinationIDs[d.Name] = dest.ID
		logger.Info().Str("name", d.Name).Str("id", dest.ID).Msg("seed destination created")
	}

	schedules, err := services.Schedules.List(ctx)
	if err != nil {
		return fmt.Errorf("list schedules: %w", err)
	}
	existingSchedules := map[string]bool{}
	for _, s := range schedules {
		existingSchedules[s.Name] = true
	}

	for _, s := range seed.Schedules {
		if existingSchedules[s.Name] {
			logger.Debug().Str("name", s.Name).Msg("seed schedule exists, skipping")
			continue
		}
		targetID, ok := targetIDs[s.Target]
		if !ok {
			return fmt.Errorf("schedule %q references unknown target %q", s.Name, s.Target)
		}
		destinationID := model.LocalDestinationID
		if s.Destination != "" {
			if destinationID, ok = destinationIDs[s.Destination]; !ok {
				return fmt.Errorf("schedule %q references unknown destination %q", s.Name, s.Destination)
			}
		}
		sched := &model.Schedule{
			ID:            platform.NewID(),
			Name:          s.Name,
			TargetID:      targetID,
			DestinationID: destinationID,
			Interval:      s.Interval,
			RetentionDays: s.RetentionDays,
			Active:        true,
		}
		if err := services.Schedules.Create(ctx, sched); err != nil {
			return fmt.Errorf("create schedule %q: %w", s.Name, err)
		}
		logger.Info().Str("name", s.Name).Str("id", sched.ID).Msg("seed schedule created")
	}

	return nil
}
