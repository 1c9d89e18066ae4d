package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"kfetch/internal/client"
	"kfetch/internal/kfetch"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultServer = "http://localhost:8080"

// infoFlags флаги выбора строк отчета
type infoFlags struct {
	all      bool
	cpuModel bool
	memory   bool
	procs    bool
	cpuCount bool
	release  bool
	uptime   bool
	fields   []string
}

// chosen сообщает, выбрана ли хотя бы одна метрика. Флаг со значением
// false (например -a=false) выбором не считается.
func (f infoFlags) chosen() bool {
	return f.all || f.cpuModel || f.memory || f.procs || f.cpuCount ||
		f.release || f.uptime || len(f.fields) > 0
}

// mask возвращает маску по флагам или nil, если ничего не выбрано
// и нужно использовать текущую маску устройства
func (f infoFlags) mask() (*uint32, error) {
	if !f.chosen() {
		return nil, nil
	}
	if f.all {
		raw := kfetch.AllFields.Raw()
		return &raw, nil
	}

	var fields []kfetch.MetricField
	for _, sel := range []struct {
		set   bool
		field kfetch.MetricField
	}{
		{f.release, kfetch.FieldRelease},
		{f.cpuModel, kfetch.FieldCPUModel},
		{f.cpuCount, kfetch.FieldCPUCount},
		{f.memory, kfetch.FieldMemory},
		{f.procs, kfetch.FieldProcessCount},
		{f.uptime, kfetch.FieldUptime},
	} {
		if sel.set {
			fields = append(fields, sel.field)
		}
	}
	for _, name := range f.fields {
		field, ok := kfetch.ParseField(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("unknown field %q", name)
		}
		fields = append(fields, field)
	}
	raw := kfetch.MaskOf(fields...).Raw()
	return &raw, nil
}

func newRootCommand(out io.Writer) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("KFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var flags infoFlags

	root := &cobra.Command{
		Use:   "kfetch",
		Short: "Print the kfetch system report",
		Long: `Read the system report from a kfetch device.

With any info flag the visibility mask is set from the flags before reading,
and the device keeps it for later readers. Without flags the current mask is used.

Examples:
  kfetch
  kfetch -a
  kfetch -r -u
  kfetch --device /run/kfetch/kfetch -m`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mask, err := flags.mask()
			if err != nil {
				return err
			}

			opener, err := openerFor(v)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), v.GetDuration("timeout"))
			defer cancel()

			report, err := client.Fetch(ctx, opener, mask, client.DefaultReadLength)
			if err != nil {
				return err
			}
			_, err = out.Write(report)
			return err
		},
	}

	pf := root.PersistentFlags()
	pf.String("server", defaultServer, "kfetchd HTTP address (env KFETCH_SERVER)")
	pf.String("device", "", "device file of a kfetchd FUSE mount; overrides --server (env KFETCH_DEVICE)")
	pf.String("api-key", "", "API key for kfetchd (env KFETCH_API_KEY)")
	pf.Duration("timeout", 10*time.Second, "overall request timeout")
	for _, name := range []string{"server", "device", "api-key", "timeout"} {
		_ = v.BindPFlag(name, pf.Lookup(name))
	}

	f := root.Flags()
	f.BoolVarP(&flags.all, "all", "a", false, "show all information")
	f.BoolVarP(&flags.cpuModel, "cpu", "c", false, "show CPU model name")
	f.BoolVarP(&flags.memory, "mem", "m", false, "show memory information")
	f.BoolVarP(&flags.procs, "procs", "n", false, "show the number of processes")
	f.BoolVarP(&flags.cpuCount, "cpus", "p", false, "show the number of online and total CPUs")
	f.BoolVarP(&flags.release, "release", "r", false, "show the kernel release")
	f.BoolVarP(&flags.uptime, "uptime", "u", false, "show how long the system has been running")
	f.StringSliceVar(&flags.fields, "fields", nil, "fields by name: release,cpu_model,cpu_count,memory,process_count,uptime")

	root.AddCommand(newStatusCommand(out, v))
	return root
}

func openerFor(v *viper.Viper) (client.Opener, error) {
	if device := v.GetString("device"); device != "" {
		return client.NewFileClient(device), nil
	}
	return httpClient(v)
}

func httpClient(v *viper.Viper) (*client.HTTPClient, error) {
	return client.NewHTTPClient(client.HTTPConfig{
		BaseURL: v.GetString("server"),
		APIKey:  v.GetString("api-key"),
		Timeout: v.GetDuration("timeout"),
	})
}

func newStatusCommand(out io.Writer, v *viper.Viper) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether the device is in use and which fields are enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := httpClient(v)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), v.GetDuration("timeout"))
			defer cancel()

			status, err := c.Status(ctx)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			}
			return printStatus(out, status)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print status as JSON")
	return cmd
}

func printStatus(out io.Writer, status client.DeviceStatus) error {
	state := "free"
	if status.Open {
		state = fmt.Sprintf("in use (session age %s, idle %s)",
			status.SessionAge.Round(time.Second), status.IdleFor.Round(time.Second))
	}

	enabled := "none"
	if len(status.Enabled) > 0 {
		enabled = strings.Join(status.Enabled, ", ")
	}

	_, err := fmt.Fprintf(out, "Device:  %s\nMask:    %d (%06b)\nEnabled: %s\n",
		state, status.Mask, status.Mask, enabled)
	return err
}
