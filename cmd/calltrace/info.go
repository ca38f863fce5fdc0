package main

import (
	"encoding/hex"
	"fmt"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joshuapare/calltrace/trace"
)

func init() {
	cmd := newInfoCmd()
	cmd.Flags().String("protocol", trace.DefaultProtocol, "Transport protocol name")
	cmd.Flags().String("endpoint", trace.DefaultEndpoint, "Transport endpoint name")
	bindFlags(cmd)
	rootCmd.AddCommand(cmd)
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show provider identity, format version, and counter calibration",
		Long: `The info command reports what a producer on this host would stamp into
its segments: the provider and event class identifiers, the record format
version, the counter resolution, and the transport names.

Example:
  calltrace info
  calltrace info --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo()
		},
	}
}

// Info is the report printed by the info command.
type Info struct {
	ProviderID       string `json:"provider_id"`
	ProviderGUID     string `json:"provider_guid_bytes"`
	EventClassID     string `json:"event_class_id"`
	EventClassGUID   string `json:"event_class_guid_bytes"`
	Version          string `json:"format_version"`
	PrefixSize       int    `json:"prefix_size"`
	HeaderRecordSize int    `json:"header_record_size"`
	TimerResolution  uint64 `json:"timer_resolution"`
	ThreadID         uint32 `json:"thread_id"`
	Protocol         string `json:"protocol"`
	Endpoint         string `json:"endpoint"`
	ProtocolUTF16    string `json:"protocol_utf16"`
	EndpointUTF16    string `json:"endpoint_utf16"`
}

func collectInfo() (Info, error) {
	sess, err := trace.NewSession(trace.WithTransport(
		viper.GetString("info.protocol"), viper.GetString("info.endpoint")))
	if err != nil {
		return Info{}, fmt.Errorf("failed to calibrate counter: %w", err)
	}
	proto16, ep16, err := sess.TransportUTF16()
	if err != nil {
		return Info{}, err
	}
	provider := trace.GUIDBytes(trace.ProviderID)
	class := trace.GUIDBytes(trace.EventClassID)
	return Info{
		ProviderID:       trace.ProviderID.String(),
		ProviderGUID:     hex.EncodeToString(provider[:]),
		EventClassID:     trace.EventClassID.String(),
		EventClassGUID:   hex.EncodeToString(class[:]),
		Version:          fmt.Sprintf("%d.%d", trace.VersionHi, trace.VersionLo),
		PrefixSize:       trace.PrefixSize,
		HeaderRecordSize: trace.HeaderRecordSize,
		TimerResolution:  sess.Calibration().Frequency,
		ThreadID:         sess.ThreadID(),
		Protocol:         sess.Protocol(),
		Endpoint:         sess.Endpoint(),
		ProtocolUTF16:    hex.EncodeToString(proto16),
		EndpointUTF16:    hex.EncodeToString(ep16),
	}, nil
}

func runInfo() error {
	info, err := collectInfo()
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(info)
	}

	printInfo("%v Call-trace provider\n", color.GreenString("==>"))
	table := uitable.New()
	table.Separator = " "
	table.MaxColWidth = 80
	table.RightAlign(0)
	table.AddRow("provider:", info.ProviderID)
	table.AddRow("provider bytes:", info.ProviderGUID)
	table.AddRow("event class:", info.EventClassID)
	table.AddRow("event class bytes:", info.EventClassGUID)
	table.AddRow("format version:", info.Version)
	table.AddRow("record prefix:", fmt.Sprintf("%d bytes", info.PrefixSize))
	table.AddRow("segment header:", fmt.Sprintf("%d bytes", info.HeaderRecordSize))
	table.AddRow("timer resolution:", fmt.Sprintf("%d ticks/s", info.TimerResolution))
	table.AddRow("thread:", info.ThreadID)
	table.AddRow("protocol:", info.Protocol)
	table.AddRow("endpoint:", info.Endpoint)
	table.AddRow("protocol utf-16:", info.ProtocolUTF16)
	table.AddRow("endpoint utf-16:", info.EndpointUTF16)
	printInfo("%s\n", table)
	return nil
}
