package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/circuit-janitor/internal/model"
	"github.com/nhle/circuit-janitor/internal/store"
)

const timeLayout = "2006-01-02 15:04"

var (
	listProvider string
	listUpcoming bool
	listRecent   bool
	listAll      bool
	listLimit    int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored providers, circuits or maintenances",
}

var listProvidersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List providers",
	RunE:  runListProviders,
}

var listCircuitsCmd = &cobra.Command{
	Use:   "circuits",
	Short: "List circuits",
	RunE:  runListCircuits,
}

var listMaintenancesCmd = &cobra.Command{
	Use:     "maintenances",
	Aliases: []string{"maint"},
	Short:   "List maintenances, newest first",
	RunE:    runListMaintenances,
}

func init() {
	listCmd.PersistentFlags().StringVarP(&listProvider, "provider", "p", "", "Only show rows of this provider")
	listCmd.PersistentFlags().IntVar(&listLimit, "limit", 50, "Maximum number of rows")
	listMaintenancesCmd.Flags().BoolVar(&listUpcoming, "upcoming", false, "Only maintenances with a date today or later")
	listMaintenancesCmd.Flags().BoolVar(&listRecent, "recent", false, "Only maintenances received in the last 7 days")
	listMaintenancesCmd.Flags().BoolVar(&listAll, "all", false, "Include rescheduled rows")

	listCmd.AddCommand(listProvidersCmd)
	listCmd.AddCommand(listCircuitsCmd)
	listCmd.AddCommand(listMaintenancesCmd)
}

func runListProviders(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, _, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	providers, err := a.Store.GetProviders(ctx)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(providers))
	for _, p := range providers {
		enabled := "no"
		if _, ok := a.Registry.Get(p.Name); ok {
			enabled = "yes"
		}
		rows = append(rows, []string{p.Name, string(p.Type), p.EmailEsc, enabled})
	}
	printTable([]string{"Name", "Type", "Escalation", "Enabled"}, rows)
	return nil
}

func runListCircuits(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, _, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	names, err := providerNames(ctx, a.Store)
	if err != nil {
		return err
	}
	filter := store.CircuitFilter{Limit: listLimit}
	if filter.ProviderID, err = providerFilter(ctx, a.Store); err != nil {
		return err
	}

	circuits, err := a.Store.GetCircuits(ctx, filter)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(circuits))
	for _, c := range circuits {
		rows = append(rows, []string{c.ProviderCID, names[c.ProviderID], c.ASide, c.ZSide})
	}
	printTable([]string{"Circuit", "Provider", "A side", "Z side"}, rows)
	return nil
}

func runListMaintenances(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, _, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	names, err := providerNames(ctx, a.Store)
	if err != nil {
		return err
	}
	filter := store.MaintenanceFilter{ActiveOnly: !listAll, Limit: listLimit}
	if filter.ProviderID, err = providerFilter(ctx, a.Store); err != nil {
		return err
	}
	if listUpcoming {
		today := model.Day(a.Clock.Now().UTC())
		filter.OnOrAfter = &today
	}
	if listRecent {
		since := a.Clock.Now().UTC().AddDate(0, 0, -7)
		filter.ReceivedSince = &since
	}

	maintenances, err := a.Store.GetMaintenances(ctx, filter)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(maintenances))
	for _, m := range maintenances {
		mcs, err := a.Store.GetMaintCircuits(ctx, m.ID)
		if err != nil {
			return err
		}
		dates, circuits := summarize(mcs)
		rows = append(rows, []string{
			names[m.ProviderID],
			m.ProviderMaintID,
			m.Status(),
			fmt.Sprintf("%s-%s %s", m.Start, m.End, m.Timezone),
			dates,
			fmt.Sprint(circuits),
			m.Location,
			m.ReceivedAt.Format(timeLayout),
		})
	}
	printTable([]string{"Provider", "Ticket", "Status", "Window", "Dates", "Circuits", "Location", "Received"}, rows)
	return nil
}

// summarize returns the distinct dates and circuit count of a maintenance.
func summarize(mcs []model.MaintCircuit) (string, int) {
	days := map[string]bool{}
	circuits := map[string]bool{}
	for _, mc := range mcs {
		days[mc.Date.Format(model.DateLayout)] = true
		circuits[mc.CircuitID] = true
	}
	sorted := make([]string, 0, len(days))
	for d := range days {
		sorted = append(sorted, d)
	}
	sort.Strings(sorted)
	return strings.Join(sorted, ", "), len(circuits)
}

func providerNames(ctx context.Context, s store.Store) (map[string]string, error) {
	providers, err := s.GetProviders(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(providers))
	for _, p := range providers {
		names[p.ID] = p.Name
	}
	return names, nil
}

func providerFilter(ctx context.Context, s store.Store) (*string, error) {
	if listProvider == "" {
		return nil, nil
	}
	p, err := s.GetProviderByName(ctx, strings.ToLower(listProvider))
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", listProvider, err)
	}
	return &p.ID, nil
}
