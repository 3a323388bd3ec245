package command

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/joeycumines/viewloop/internal/view"
)

var (
	kindsHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	kindsCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	kindsTitleStyle  = lipgloss.NewStyle().Bold(true)
)

// KindsCommand lists the view kinds and their schemas.
type KindsCommand struct {
	*BaseCommand
}

// NewKindsCommand creates a new kinds command.
func NewKindsCommand() *KindsCommand {
	return &KindsCommand{
		BaseCommand: NewBaseCommand(
			"kinds",
			"List view kinds, or describe the named kinds",
			"kinds [kind...]",
		),
	}
}

// Execute prints the summary table, or one detail block per named kind.
func (c *KindsCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		t := newTable("Kind", "Props", "Children", "Contracts")
		for _, name := range view.Kinds() {
			info, _ := view.Describe(name)
			t.Row(info.Name, fieldNames(info.Props), childSummary(info), contractNames(info.Contracts))
		}
		_, _ = fmt.Fprintln(stdout, t.Render())
		return nil
	}

	for i, name := range args {
		info, ok := view.Describe(name)
		if !ok {
			_, _ = fmt.Fprintf(stderr, "Unknown kind: %s\n", name)
			return fmt.Errorf("unknown view kind: %s", name)
		}
		if i > 0 {
			_, _ = fmt.Fprintln(stdout)
		}
		writeKind(stdout, info)
	}
	return nil
}

func writeKind(w io.Writer, info view.KindInfo) {
	title := info.Name
	if info.Captures {
		title += " (captures input)"
	}
	_, _ = fmt.Fprintln(w, kindsTitleStyle.Render(title))

	if len(info.Props) > 0 {
		t := newTable("Prop", "Type", "Default", "Rule")
		for _, f := range info.Props {
			t.Row(fieldName(f), f.Type, fmt.Sprint(f.Default), f.Rule)
		}
		_, _ = fmt.Fprintln(w, t.Render())
	}

	if len(info.Children) > 0 {
		t := newTable("Child", "Field", "Type", "Rule")
		for _, ch := range info.Children {
			label := ch.Type
			if ch.Tag != "" {
				label = info.TagField + "=" + ch.Tag
			}
			if len(ch.Fields) == 0 {
				t.Row(label, "", ch.Type, "")
				continue
			}
			for _, f := range ch.Fields {
				t.Row(label, fieldName(f), f.Type, f.Rule)
				label = ""
			}
		}
		_, _ = fmt.Fprintln(w, t.Render())
	}

	if len(info.Contracts) > 0 {
		t := newTable("Contract", "Payload")
		for _, ct := range info.Contracts {
			t.Row(ct.Name, ct.Payload)
		}
		_, _ = fmt.Fprintln(w, t.Render())
	}
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return kindsHeaderStyle
			}
			return kindsCellStyle
		})
}

func fieldName(f view.FieldInfo) string {
	if f.Optional {
		return f.Name + "?"
	}
	return f.Name
}

func fieldNames(fields []view.FieldInfo) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = fieldName(f)
	}
	return strings.Join(names, ", ")
}

func childSummary(info view.KindInfo) string {
	switch {
	case len(info.Children) == 0:
		return "-"
	case info.TagField != "":
		tags := make([]string, len(info.Children))
		for i, ch := range info.Children {
			tags[i] = ch.Tag
		}
		return info.TagField + ": " + strings.Join(tags, "|")
	default:
		return info.Children[0].Type
	}
}

func contractNames(contracts []view.ContractInfo) string {
	if len(contracts) == 0 {
		return "-"
	}
	names := make([]string, len(contracts))
	for i, ct := range contracts {
		names[i] = ct.Name
	}
	return strings.Join(names, ", ")
}
