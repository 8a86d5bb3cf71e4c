package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestDashboard_Render(t *testing.T) {
	var buf bytes.Buffer
	if err := Dashboard().Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	html := buf.String()

	expected := []string{
		"<!DOCTYPE html>",
		`data-init="@get('/sse/refresh-all')"`,
		datastarScript,
		`id="status-content"`,
		`data-on:click="@get('/sse/forecast')"`,
	}
	for _, p := range Panels {
		expected = append(expected, `id="`+p.ID+`-content"`)
		if p.Chart {
			expected = append(expected, `id="`+p.ID+`-chart"`)
		}
	}

	for _, want := range expected {
		if !strings.Contains(html, want) {
			t.Errorf("dashboard should contain %q", want)
		}
	}
	if !strings.HasSuffix(html, "</html>") {
		t.Error("dashboard should be a complete document")
	}
}

func TestPanelCard_EscapesTitle(t *testing.T) {
	var buf bytes.Buffer
	if err := PanelCard(Panel{ID: "x", Title: "<b>Risk</b>"}).Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "<b>") {
		t.Errorf("title not escaped: %s", buf.String())
	}
}
