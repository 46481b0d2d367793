package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/carelink/shift-portal/internal/database"
	"github.com/carelink/shift-portal/internal/models"
	"github.com/carelink/shift-portal/internal/services"
	"github.com/carelink/shift-portal/pkg/validator"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// seedFile lists accounts to create. Entries use the same keys as the
// registration API bodies.
type seedFile struct {
	CareHomes []models.RegisterCareHomeRequest
	Workers   []models.RegisterWorkerRequest
}

// parseSeed decodes YAML by round-tripping through JSON so the request
// structs' json tags apply
func parseSeed(r io.Reader) (*seedFile, error) {
	var raw struct {
		CareHomes []map[string]interface{} `yaml:"care_homes"`
		Workers   []map[string]interface{} `yaml:"workers"`
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	seed := &seedFile{}
	for i, entry := range raw.CareHomes {
		var req models.RegisterCareHomeRequest
		if err := remarshal(entry, &req); err != nil {
			return nil, fmt.Errorf("care_homes[%d]: %w", i, err)
		}
		seed.CareHomes = append(seed.CareHomes, req)
	}
	for i, entry := range raw.Workers {
		var req models.RegisterWorkerRequest
		if err := remarshal(entry, &req); err != nil {
			return nil, fmt.Errorf("workers[%d]: %w", i, err)
		}
		seed.Workers = append(seed.Workers, req)
	}
	return seed, nil
}

func remarshal(in map[string]interface{}, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func seedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Register care homes and workers from a YAML file",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return connect()
		},
		PostRun: func(cmd *cobra.Command, args []string) {
			disconnect()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			seed, err := parseSeed(f)
			if err != nil {
				return err
			}

			auth := services.NewAuthService(
				database.NewCareHomeRepository(app.db),
				database.NewCareWorkerRepository(app.db),
				nil,
				validator.NewFieldValidator(),
				nil,
				app.logger,
				services.AuthOptions{},
			)
			return runSeed(cmd.OutOrStdout(), seed, auth)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Seed file (YAML)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runSeed(out io.Writer, seed *seedFile, auth *services.AuthService) error {
	client := models.ClientInfo{UserAgent: "portalctl"}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROLE\tEMAIL\tACCOUNT\tPASSWORD")

	var failed int
	report := func(res *models.RegistrationResult, email string, err error) {
		if err != nil {
			failed++
			app.logger.WithError(err).WithField("email", email).Error("Seed entry failed")
			return
		}
		password := "(supplied)"
		if res.GeneratedPassword != "" {
			password = res.GeneratedPassword
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", res.Role, res.Email, res.AccountID, password)
	}

	for _, req := range seed.CareHomes {
		res, err := auth.RegisterCareHome(app.ctx, req, client)
		report(res, req.ManagerEmail, err)
	}
	for _, req := range seed.Workers {
		res, err := auth.RegisterWorker(app.ctx, req, client)
		report(res, req.Email, err)
	}

	if err := w.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d seed entries failed", failed)
	}
	return nil
}
