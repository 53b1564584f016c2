package orchestrator

import (
	"testing"

	"github.com/shubhsaxena/search-layout/internal/models"
)

func TestLayoutSelector_EveryIntentHasOneEntryPerModule(t *testing.T) {
	ls := NewLayoutSelector()

	for _, intent := range models.AllIntents() {
		layout := ls.Select(intent)
		if layout.Intent != intent {
			t.Errorf("Select(%s) reported intent %s", intent, layout.Intent)
		}
		if len(layout.Modules) != len(models.AllModules()) {
			t.Fatalf("%s: expected %d modules, got %d", intent, len(models.AllModules()), len(layout.Modules))
		}
		seen := map[models.Module]bool{}
		for _, m := range layout.Modules {
			if seen[m.Module] {
				t.Errorf("%s: duplicate module %s", intent, m.Module)
			}
			seen[m.Module] = true
		}
		for _, m := range models.AllModules() {
			if !seen[m] {
				t.Errorf("%s: missing module %s", intent, m)
			}
		}
	}
}

func TestLayoutSelector_LeadModules(t *testing.T) {
	ls := NewLayoutSelector()

	tests := []struct {
		intent models.Intent
		lead   models.Module
	}{
		{models.IntentFactual, models.ModuleDiscussion},
		{models.IntentLocal, models.ModuleShortVideo},
		{models.IntentVisual, models.ModuleImageBoard},
		{models.IntentFashion, models.ModuleImageBoard},
		{models.IntentProductResearch, models.ModuleDiscussion},
		{models.IntentHowTo, models.ModuleShortVideo},
		{models.IntentSocial, models.ModuleDiscussion},
		{models.IntentEntertainment, models.ModuleShortVideo},
		{models.IntentLifestyle, models.ModuleShortVideo},
		{models.IntentGeneral, models.ModuleShortVideo},
	}

	for _, tt := range tests {
		lead := ls.Select(tt.intent).Lead()
		if lead.Module != tt.lead || lead.Priority != models.PriorityHigh {
			t.Errorf("%s: expected %s at high priority first, got %+v", tt.intent, tt.lead, lead)
		}
	}
}

func TestLayoutSelector_UnknownIntentFallsBackToGeneral(t *testing.T) {
	ls := NewLayoutSelector()

	got := ls.Select(models.Intent("astrology"))
	want := ls.Select(models.IntentGeneral)

	if len(got.Modules) != len(want.Modules) {
		t.Fatalf("expected general layout, got %+v", got)
	}
	for i := range want.Modules {
		if got.Modules[i] != want.Modules[i] {
			t.Errorf("position %d: expected %+v, got %+v", i, want.Modules[i], got.Modules[i])
		}
	}
}

func TestLayoutSelector_ReturnsCopy(t *testing.T) {
	ls := NewLayoutSelector()

	layout := ls.Select(models.IntentVisual)
	layout.Modules[0].Priority = models.PriorityNone

	if ls.Select(models.IntentVisual).Modules[0].Priority != models.PriorityHigh {
		t.Error("mutating a returned layout must not change the table")
	}
}

func TestLayoutTable_NonePriorityIsHidden(t *testing.T) {
	for intent, modules := range layoutTable {
		for _, m := range modules {
			if m.Priority == models.PriorityNone && m.Display != models.DisplayHidden {
				t.Errorf("%s: %s has priority none but display %s", intent, m.Module, m.Display)
			}
		}
	}
}

func TestVisibleModules(t *testing.T) {
	layouts := []models.ModuleLayout{
		ml(models.ModuleDiscussion, models.PriorityHigh, models.DisplayFull),
		ml(models.ModuleShortVideo, models.PriorityLow, models.DisplayCollapsed),
		ml(models.ModuleImageBoard, models.PriorityNone, models.DisplayHidden),
	}

	got := VisibleModules(layouts)
	if len(got) != 2 {
		t.Fatalf("expected 2 visible modules, got %d", len(got))
	}
	if got[0].Module != models.ModuleDiscussion || got[1].Module != models.ModuleShortVideo {
		t.Errorf("expected table order kept, got %+v", got)
	}
	if len(layouts) != 3 {
		t.Error("input must not be modified")
	}
}

func TestVisibleModules_Empty(t *testing.T) {
	if got := VisibleModules(nil); len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}

func TestRenderOrder_SortsByPriority(t *testing.T) {
	layouts := []models.ModuleLayout{
		ml(models.ModuleShortVideo, models.PriorityLow, models.DisplayCollapsed),
		ml(models.ModuleDiscussion, models.PriorityMedium, models.DisplayExpandable),
		ml(models.ModuleImageBoard, models.PriorityHigh, models.DisplayFull),
	}

	got := RenderOrder(layouts)
	want := []models.Module{models.ModuleImageBoard, models.ModuleDiscussion, models.ModuleShortVideo}
	for i, m := range want {
		if got[i].Module != m {
			t.Errorf("position %d: expected %s, got %s", i, m, got[i].Module)
		}
	}
	if layouts[0].Module != models.ModuleShortVideo {
		t.Error("RenderOrder must not reorder its input")
	}
}

func TestRenderOrder_StableForEqualPriority(t *testing.T) {
	ls := NewLayoutSelector()

	// lifestyle has image_board and discussion both at medium, in that order.
	got := RenderOrder(ls.Select(models.IntentLifestyle).Modules)
	if len(got) != 3 {
		t.Fatalf("expected 3 modules, got %d", len(got))
	}
	if got[1].Module != models.ModuleImageBoard || got[2].Module != models.ModuleDiscussion {
		t.Errorf("equal priorities must keep table order, got %+v", got)
	}

	// fashion has image_board and short_video both at high.
	got = RenderOrder(ls.Select(models.IntentFashion).Modules)
	if got[0].Module != models.ModuleImageBoard || got[1].Module != models.ModuleShortVideo {
		t.Errorf("equal priorities must keep table order, got %+v", got)
	}
}

func TestRenderOrder_DropsHidden(t *testing.T) {
	ls := NewLayoutSelector()

	for _, intent := range []models.Intent{models.IntentFactual, models.IntentSocial, models.IntentEntertainment} {
		got := RenderOrder(ls.Select(intent).Modules)
		if len(got) != 2 {
			t.Errorf("%s: expected 2 rendered modules, got %d", intent, len(got))
		}
		for _, m := range got {
			if m.Module == models.ModuleImageBoard {
				t.Errorf("%s: hidden image board must not render", intent)
			}
		}
	}
}
