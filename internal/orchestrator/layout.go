package orchestrator

import (
	"slices"

	"github.com/shubhsaxena/search-layout/internal/models"
)

func ml(m models.Module, p models.Priority, d models.DisplayMode) models.ModuleLayout {
	return models.ModuleLayout{Module: m, Priority: p, Display: d}
}

// layoutTable holds one entry per module for every intent. Table order is the
// order the client lays modules out in; RenderOrder gives priority order.
var layoutTable = map[models.Intent][]models.ModuleLayout{
	models.IntentFactual: {
		ml(models.ModuleDiscussion, models.PriorityHigh, models.DisplayFull),
		ml(models.ModuleShortVideo, models.PriorityLow, models.DisplayCollapsed),
		ml(models.ModuleImageBoard, models.PriorityNone, models.DisplayHidden),
	},
	models.IntentLocal: {
		ml(models.ModuleShortVideo, models.PriorityHigh, models.DisplayFull),
		ml(models.ModuleDiscussion, models.PriorityMedium, models.DisplayExpandable),
		ml(models.ModuleImageBoard, models.PriorityLow, models.DisplayCollapsed),
	},
	models.IntentVisual: {
		ml(models.ModuleImageBoard, models.PriorityHigh, models.DisplayFull),
		ml(models.ModuleShortVideo, models.PriorityMedium, models.DisplayExpandable),
		ml(models.ModuleDiscussion, models.PriorityLow, models.DisplayCollapsed),
	},
	models.IntentFashion: {
		ml(models.ModuleImageBoard, models.PriorityHigh, models.DisplayFull),
		ml(models.ModuleShortVideo, models.PriorityHigh, models.DisplayFull),
		ml(models.ModuleDiscussion, models.PriorityLow, models.DisplayCollapsed),
	},
	models.IntentProductResearch: {
		ml(models.ModuleDiscussion, models.PriorityHigh, models.DisplayFull),
		ml(models.ModuleShortVideo, models.PriorityMedium, models.DisplayExpandable),
		ml(models.ModuleImageBoard, models.PriorityLow, models.DisplayCollapsed),
	},
	models.IntentHowTo: {
		ml(models.ModuleShortVideo, models.PriorityHigh, models.DisplayFull),
		ml(models.ModuleDiscussion, models.PriorityMedium, models.DisplayExpandable),
		ml(models.ModuleImageBoard, models.PriorityLow, models.DisplayCollapsed),
	},
	models.IntentSocial: {
		ml(models.ModuleDiscussion, models.PriorityHigh, models.DisplayFull),
		ml(models.ModuleShortVideo, models.PriorityLow, models.DisplayCollapsed),
		ml(models.ModuleImageBoard, models.PriorityNone, models.DisplayHidden),
	},
	models.IntentEntertainment: {
		ml(models.ModuleShortVideo, models.PriorityHigh, models.DisplayFull),
		ml(models.ModuleDiscussion, models.PriorityMedium, models.DisplayExpandable),
		ml(models.ModuleImageBoard, models.PriorityNone, models.DisplayHidden),
	},
	models.IntentLifestyle: {
		ml(models.ModuleShortVideo, models.PriorityHigh, models.DisplayFull),
		ml(models.ModuleImageBoard, models.PriorityMedium, models.DisplayExpandable),
		ml(models.ModuleDiscussion, models.PriorityMedium, models.DisplayExpandable),
	},
	models.IntentGeneral: {
		ml(models.ModuleShortVideo, models.PriorityHigh, models.DisplayFull),
		ml(models.ModuleDiscussion, models.PriorityMedium, models.DisplayExpandable),
		ml(models.ModuleImageBoard, models.PriorityLow, models.DisplayCollapsed),
	},
}

type LayoutSelector struct {
	table    map[models.Intent][]models.ModuleLayout
	fallback models.Intent
}

func NewLayoutSelector() *LayoutSelector {
	return &LayoutSelector{
		table:    layoutTable,
		fallback: models.IntentGeneral,
	}
}

// Select returns the layout for intent. Intents without an entry get the
// general layout. The returned slice is a copy the caller owns.
func (ls *LayoutSelector) Select(intent models.Intent) models.LayoutConfig {
	modules, ok := ls.table[intent]
	if !ok {
		modules = ls.table[ls.fallback]
	}
	return models.LayoutConfig{
		Intent:  intent,
		Modules: slices.Clone(modules),
	}
}

// VisibleModules drops modules whose priority is none, keeping table order.
func VisibleModules(layouts []models.ModuleLayout) []models.ModuleLayout {
	out := make([]models.ModuleLayout, 0, len(layouts))
	for _, l := range layouts {
		if l.Priority == models.PriorityNone {
			continue
		}
		out = append(out, l)
	}
	return out
}

// RenderOrder returns the visible modules sorted high to low priority. Equal
// priorities keep their table order.
func RenderOrder(layouts []models.ModuleLayout) []models.ModuleLayout {
	out := VisibleModules(layouts)
	slices.SortStableFunc(out, func(a, b models.ModuleLayout) int {
		return b.Priority.Rank() - a.Priority.Rank()
	})
	return out
}
