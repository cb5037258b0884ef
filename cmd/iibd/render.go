package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/sweeney/iib-interlock/internal/profile"
	"github.com/sweeney/iib-interlock/internal/status"
	"github.com/sweeney/iib-interlock/internal/web"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Width(16)

	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	tripStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	alarmStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...)
}

func newVariantsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "variants [name]",
		Short: "List the supported power-module variants, or detail one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), renderVariants(profile.Variants()))
				return nil
			}
			v, err := profile.ParseVariant(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderVariant(profile.Lookup(v)))
			return nil
		},
	}
}

func renderVariants(descs []*profile.Descriptor) string {
	t := newTable("Variant", "ADC", "RTD", "Causes", "Signals", "Driver errors", "LEDs")
	for _, d := range descs {
		t.Row(
			d.Variant.String(),
			fmt.Sprint(len(d.ADC)),
			fmt.Sprint(len(d.RTD)),
			fmt.Sprint(len(d.Causes)),
			fmt.Sprint(d.NumSignals()),
			yesNo(d.DriverErrors),
			d.Polarity.String(),
		)
	}
	return t.Render()
}

func renderVariant(d *profile.Descriptor) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(d.Variant.String()))
	b.WriteString("\n\n")

	causes := newTable("Cause", "Source", "Interlock bit", "Alarm bit", "LED")
	for _, c := range d.Causes {
		alarm := "-"
		if c.AlarmBit != 0 {
			alarm = fmt.Sprintf("0x%08X", c.AlarmBit)
		}
		led := "-"
		if c.LED != 0 {
			led = fmt.Sprint(c.LED)
		}
		causes.Row(c.Name, c.Source.String(), fmt.Sprintf("0x%08X", c.ItlkBit), alarm, led)
	}
	b.WriteString(causes.Render())
	b.WriteString("\n")

	signals := newTable("Slot", "Signal", "Source")
	signals.Row(fmt.Sprint(profile.SignalInterlocks), "interlocks", "-")
	signals.Row(fmt.Sprint(profile.SignalAlarms), "alarms", "-")
	for i, s := range d.Signals {
		signals.Row(fmt.Sprint(i+2), s.Name, s.Source.String())
	}
	b.WriteString(signals.Render())
	b.WriteString("\n")

	var fast []string
	for phase, slots := range d.Fast {
		if len(slots) > 0 {
			fast = append(fast, fmt.Sprintf("%d:%v", phase, slots))
		}
	}
	b.WriteString(labelStyle.Render("Fast phases:"))
	b.WriteString(" " + strings.Join(fast, " "))
	return b.String()
}

func renderStatus(s status.StatusInner) string {
	state := okStyle.Render("OK")
	if s.Interlocked {
		state = tripStyle.Render("TRIPPED")
	} else if s.Alarmed {
		state = alarmStyle.Render("ALARM")
	}
	mqtt := "disconnected"
	if s.MQTT.Connected {
		mqtt = "connected"
	}

	lines := []string{
		titleStyle.Render(fmt.Sprintf("IIB %d (%s)", s.Board, s.Variant)),
		"",
		labelStyle.Render("State:") + " " + state,
		labelStyle.Render("Interlock bits:") + " " + s.InterlockBits,
		labelStyle.Render("Alarm bits:") + " " + s.AlarmBits,
		labelStyle.Render("Relays closed:") + " " + yesNo(s.Ready),
		labelStyle.Render("Clear pending:") + " " + yesNo(s.ClearPending),
		labelStyle.Render("Uptime:") + " " + fmt.Sprintf("%ds", s.UptimeSeconds),
		labelStyle.Render("MQTT:") + " " + mqtt,
		labelStyle.Render("Events:") + " " + fmt.Sprintf("interlock=%d alarm=%d clear=%d",
			s.Counts.Interlock, s.Counts.Alarm, s.Counts.Clear),
	}

	var active []string
	for _, c := range s.Causes {
		switch {
		case c.Tripped:
			active = append(active, tripStyle.Render(c.Name))
		case c.Alarmed:
			active = append(active, alarmStyle.Render(c.Name))
		}
	}
	if len(active) > 0 {
		lines = append(lines, labelStyle.Render("Causes:")+" "+strings.Join(active, ", "))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func renderHistory(entries []web.HistoryEntry) string {
	if len(entries) == 0 {
		return "no events"
	}
	t := newTable("Time", "Event", "Variant", "Interlock bits", "Alarm bits", "Causes")
	for _, e := range entries {
		t.Row(
			e.Timestamp,
			e.Type,
			e.Variant,
			fmt.Sprintf("0x%08X", e.InterlockBits),
			fmt.Sprintf("0x%08X", e.AlarmBits),
			strings.Join(e.Causes, ", "),
		)
	}
	return t.Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
