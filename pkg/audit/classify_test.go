package audit

import (
	"testing"

	"github.com/hazyhaar/auditlens/pkg/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_EveryCategoryPresent(t *testing.T) {
	c := rules.MustCompileDefault()
	got := NewClassifier(c).ClassifyText("todo bien", true)
	for _, id := range c.CategoryIDs() {
		_, ok := got[id]
		assert.True(t, ok, id)
	}
}

func TestClassify(t *testing.T) {
	cl := NewClassifier(rules.MustCompileDefault())
	tests := []struct {
		name      string
		obs       string
		completed bool
		want      []string
	}{
		{"compliant not malpractice", "Sin Observaciones", true, []string{"compliant"}},
		{"multiple categories", "Falta herramienta, camioneta sucia", true, []string{"tools_missing", "vehicle_order"}},
		{"malpractice and ppe", "No utiliza casco", true, []string{"malpractice", "ppe_incomplete"}},
		{"accented keyword", "Sin LÁPIZ LUZ", true, []string{"malpractice", "gpon_kit"}},
		{"not completed", "falta herramienta", false, []string{"not_completed"}},
		{"empty neutral", "", true, nil},
		{"empty not completed", "", false, []string{"not_completed"}},
	}
	order := rules.MustCompileDefault().CategoryIDs()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cl.ClassifyText(tt.obs, tt.completed).Matched(order))
		})
	}
}

func TestClassify_EmptyCompliantPolicy(t *testing.T) {
	r := rules.Default()
	r.EmptyObservation = rules.EmptyCompliant
	c, err := rules.Compile(r)
	require.NoError(t, err)

	got := NewClassifier(c).ClassifyText("   ", true)
	assert.Equal(t, []string{"compliant"}, got.Matched(c.CategoryIDs()))
}

func TestClassifyAll_Records(t *testing.T) {
	c := rules.MustCompileDefault()
	d := FromTable(table(
		[]string{colTech, colStatus, colObs},
		map[string]string{colTech: "a", colStatus: "finalizada", colObs: "S/O"},
		map[string]string{colTech: "b", colStatus: "pendiente", colObs: "retraso"},
	), c)
	got := NewClassifier(c).ClassifyAll(d.Records)
	require.Len(t, got, 2)
	assert.True(t, got[0]["compliant"])
	assert.False(t, got[1]["agenda"], "keyword categories only count completed audits")
	assert.True(t, got[1]["not_completed"])
}

func TestExplainText(t *testing.T) {
	cl := NewClassifier(rules.MustCompileDefault())

	ev := cl.ExplainText("Falta HERRAMIENTA, camioneta sucia", true)
	assert.Len(t, ev, 2)
	assert.Contains(t, ev, "tools_missing")
	assert.Contains(t, ev, "vehicle_order")
	assert.Contains(t, "falta herramienta, camioneta sucia", ev["tools_missing"])

	ev = cl.ExplainText("falta herramienta", false)
	assert.Equal(t, Evidence{"not_completed": "desconocido"}, ev)

	assert.Empty(t, cl.ExplainText("", true))
}
