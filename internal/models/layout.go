package models

// Intent is the coarse category of answer a query is looking for. The set is
// closed; see AllIntents.
type Intent string

const (
	IntentFactual         Intent = "factual"
	IntentLocal           Intent = "local"
	IntentVisual          Intent = "visual"
	IntentFashion         Intent = "fashion"
	IntentProductResearch Intent = "product_research"
	IntentHowTo           Intent = "how_to"
	IntentSocial          Intent = "social"
	IntentEntertainment   Intent = "entertainment"
	IntentLifestyle       Intent = "lifestyle"
	IntentGeneral         Intent = "general"
)

// AllIntents returns every intent in classification order.
func AllIntents() []Intent {
	return []Intent{
		IntentFactual,
		IntentLocal,
		IntentVisual,
		IntentFashion,
		IntentProductResearch,
		IntentHowTo,
		IntentSocial,
		IntentEntertainment,
		IntentLifestyle,
		IntentGeneral,
	}
}

func (i Intent) String() string {
	return string(i)
}

func (i Intent) Valid() bool {
	for _, known := range AllIntents() {
		if i == known {
			return true
		}
	}
	return false
}

// Module is one of the external content sources the client can surface.
type Module string

const (
	ModuleShortVideo Module = "short_video"
	ModuleDiscussion Module = "discussion"
	ModuleImageBoard Module = "image_board"
)

func AllModules() []Module {
	return []Module{ModuleShortVideo, ModuleDiscussion, ModuleImageBoard}
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
	PriorityNone   Priority = "none"
)

// Rank orders priorities for rendering; higher renders first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

type DisplayMode string

const (
	DisplayFull       DisplayMode = "full"
	DisplayExpandable DisplayMode = "expandable"
	DisplayCollapsed  DisplayMode = "collapsed"
	DisplayHidden     DisplayMode = "hidden"
)

type ModuleLayout struct {
	Module   Module      `json:"module"`
	Priority Priority    `json:"priority"`
	Display  DisplayMode `json:"display"`
}

// LayoutConfig is the display decision for one intent. Modules holds exactly
// one entry per module in table order.
type LayoutConfig struct {
	Intent  Intent         `json:"intent"`
	Modules []ModuleLayout `json:"modules"`
}

// Lead returns the first module in table order.
func (lc LayoutConfig) Lead() ModuleLayout {
	if len(lc.Modules) == 0 {
		return ModuleLayout{}
	}
	return lc.Modules[0]
}

type IntentInfo struct {
	Intent   Intent         `json:"intent"`
	Examples []string       `json:"examples"`
	Layout   []ModuleLayout `json:"layout"`
}
