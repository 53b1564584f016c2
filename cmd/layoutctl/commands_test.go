package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shubhsaxena/search-layout/internal/models"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestClassifyCmd(t *testing.T) {
	out, err := execute(t, "classify", "how", "to", "make", "matcha")
	require.NoError(t, err)

	assert.Contains(t, out, "intent:  how_to")
	assert.Contains(t, out, "keyword: how to")
	assert.Contains(t, out, "short_video")
}

func TestClassifyCmd_Fallback(t *testing.T) {
	out, err := execute(t, "classify", "Tesla")
	require.NoError(t, err)

	assert.Contains(t, out, "intent:  general")
	assert.Contains(t, out, "(fallback)")
}

func TestClassifyCmd_JSON(t *testing.T) {
	out, err := execute(t, "classify", "--json", "Who won the Super Bowl?")
	require.NoError(t, err)

	var resp models.ClassifyResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, models.IntentFactual, resp.Intent)
	assert.Len(t, resp.Layout, 3)
	assert.Len(t, resp.Render, 2)
}

func TestClassifyCmd_RequiresQuery(t *testing.T) {
	_, err := execute(t, "classify")
	assert.Error(t, err)
}

func TestIntentsCmd(t *testing.T) {
	out, err := execute(t, "intents")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, len(models.AllIntents()))
	assert.True(t, strings.HasPrefix(lines[0], "factual"))
	assert.Contains(t, lines[0], "lead=discussion")
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "general"))
}

func TestIntentsCmd_JSON(t *testing.T) {
	out, err := execute(t, "intents", "--json")
	require.NoError(t, err)

	var infos []models.IntentInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, len(models.AllIntents()))
	assert.Equal(t, models.IntentVisual, infos[2].Intent)
}

func TestExamplesCmd(t *testing.T) {
	out, err := execute(t, "examples", "HOW_TO")
	require.NoError(t, err)

	assert.Contains(t, out, "How to make matcha")
}

func TestExamplesCmd_UnknownIntent(t *testing.T) {
	_, err := execute(t, "examples", "astrology")
	assert.ErrorContains(t, err, "unknown intent")
}

func TestKeywordsCmd(t *testing.T) {
	out, err := execute(t, "keywords", "local")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, `"near me"`, lines[0])
	assert.Contains(t, lines, `"bar "`, "trailing spaces stay visible")
}

func TestKeywordsCmd_JSON(t *testing.T) {
	out, err := execute(t, "keywords", "--json", "how_to")
	require.NoError(t, err)

	var keywords []string
	require.NoError(t, json.Unmarshal([]byte(out), &keywords))
	assert.Contains(t, keywords, "how to")
}

func TestLayoutCmd_JSON(t *testing.T) {
	out, err := execute(t, "layout", "fashion", "--json")
	require.NoError(t, err)

	var layout models.LayoutConfig
	require.NoError(t, json.Unmarshal([]byte(out), &layout))
	assert.Equal(t, models.IntentFashion, layout.Intent)
	require.Len(t, layout.Modules, 3)
	assert.Equal(t, models.ModuleImageBoard, layout.Modules[0].Module)
	assert.Equal(t, models.PriorityHigh, layout.Modules[1].Priority)
}

func TestParseIntent(t *testing.T) {
	intent, err := parseIntent(" Product_Research ")
	require.NoError(t, err)
	assert.Equal(t, models.IntentProductResearch, intent)

	_, err = parseIntent("")
	assert.Error(t, err)
}
