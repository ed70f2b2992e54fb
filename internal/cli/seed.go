package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/WhatsYourWhy/Hardstop/internal/network"
)

// networkFile is the on-disk JSON layout for seed input.
type networkFile struct {
	Facilities []facilityDoc `json:"facilities"`
	Lanes      []laneDoc     `json:"lanes"`
	Shipments  []shipmentDoc `json:"shipments"`
}

type facilityDoc struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	City        string `json:"city"`
	State       string `json:"state"`
	Country     string `json:"country"`
	Criticality int    `json:"criticality"`
}

type laneDoc struct {
	ID               string `json:"id"`
	OriginFacilityID string `json:"origin_facility_id"`
	DestFacilityID   string `json:"dest_facility_id"`
	Volume           int    `json:"volume"`
}

type shipmentDoc struct {
	ID       string `json:"id"`
	LaneID   string `json:"lane_id"`
	Priority bool   `json:"priority"`
	Status   string `json:"status"`
	ETA      string `json:"eta"`
	ShipDate string `json:"ship_date"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <network.json>",
		Short: "Load network reference data into the database",
		Long: "Seed loads facilities, lanes, and shipments from a JSON file.\n" +
			"Rows are inserted idempotently; re-seeding the same file is a no-op.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, opts, args[0])
		},
	}
	return cmd
}

func runSeed(cmd *cobra.Command, opts *RootOptions, path string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		formatter.Error(ErrCodeBadInput, fmt.Sprintf("cannot read %s", path), err.Error())
		return WrapExitError(ExitCommandError, "read network file", err)
	}

	var doc networkFile
	if err := json.Unmarshal(data, &doc); err != nil {
		formatter.Error(ErrCodeBadInput, fmt.Sprintf("malformed network file %s", path), err.Error())
		return WrapExitError(ExitCommandError, "parse network file", err)
	}

	env, err := openEnv(opts)
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return err
	}
	defer env.Close()

	facilities := make([]network.Facility, 0, len(doc.Facilities))
	for _, f := range doc.Facilities {
		facilities = append(facilities, network.Facility{
			ID: f.ID, Name: f.Name, City: f.City, State: f.State,
			Country: f.Country, Criticality: f.Criticality,
		})
	}
	lanes := make([]network.Lane, 0, len(doc.Lanes))
	for _, l := range doc.Lanes {
		lanes = append(lanes, network.Lane{
			ID: l.ID, OriginFacilityID: l.OriginFacilityID,
			DestFacilityID: l.DestFacilityID, Volume: l.Volume,
		})
	}
	shipments := make([]network.Shipment, 0, len(doc.Shipments))
	for _, sh := range doc.Shipments {
		shipments = append(shipments, network.Shipment{
			ID: sh.ID, LaneID: sh.LaneID, Priority: sh.Priority,
			Status: sh.Status, ETA: sh.ETA, ShipDate: sh.ShipDate,
		})
	}

	if err := env.store.SeedNetwork(cmd.Context(), facilities, lanes, shipments); err != nil {
		formatter.Error(ErrCodeStore, "seed failed", err.Error())
		return WrapExitError(ExitFailure, "seed network", err)
	}

	summary := map[string]any{
		"facilities": len(facilities),
		"lanes":      len(lanes),
		"shipments":  len(shipments),
	}
	return formatter.Text(
		fmt.Sprintf("seeded %d facilities, %d lanes, %d shipments\n",
			len(facilities), len(lanes), len(shipments)),
		summary,
	)
}
