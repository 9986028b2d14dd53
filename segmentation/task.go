package segmentation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/RyanBlaney/sonido-motor/algorithms/common"
)

// Kind is the elicitation paradigm of a recording
type Kind int

const (
	SustainedVowel Kind = iota + 1
	SyllableRepetition
	PassageReading
)

func (k Kind) String() string {
	switch k {
	case SustainedVowel:
		return "SV"
	case SyllableRepetition:
		return "SR"
	case PassageReading:
		return "PR"
	default:
		return "UNKNOWN"
	}
}

// SyllableInstances is the number of syllable repetition sub-tasks
const SyllableInstances = 5

// Task identifies one elicitation task: SV, SR1..SR5 or PR.
// The zero value is not a valid task; use ParseTask or the constructors.
type Task struct {
	kind     Kind
	instance int // 1..5 for SR, 0 otherwise
}

// SV returns the sustained vowel task
func SV() Task { return Task{kind: SustainedVowel} }

// PR returns the passage reading task
func PR() Task { return Task{kind: PassageReading} }

// SR returns a syllable repetition sub-task
func SR(instance int) (Task, error) {
	if instance < 1 || instance > SyllableInstances {
		return Task{}, common.Errorf(common.KindInvalidTask, "task", "syllable repetition instance %d out of range 1..%d", instance, SyllableInstances)
	}
	return Task{kind: SyllableRepetition, instance: instance}, nil
}

// ParseTask parses a task name. Only the exact identifiers SV, SR1..SR5 and
// PR are accepted.
func ParseTask(name string) (Task, error) {
	switch {
	case name == "SV":
		return SV(), nil
	case name == "PR":
		return PR(), nil
	case strings.HasPrefix(name, "SR") && len(name) == 3 && name[2] >= '1' && name[2] <= '9':
		n, _ := strconv.Atoi(name[2:])
		return SR(n)
	}
	return Task{}, common.Errorf(common.KindInvalidTask, "task", "unknown task %q", name)
}

// MustParseTask is ParseTask that panics on error
func MustParseTask(name string) Task {
	t, err := ParseTask(name)
	if err != nil {
		panic(err)
	}
	return t
}

// Kind returns the task's paradigm
func (t Task) Kind() Kind { return t.kind }

// Instance returns the SR sub-task number, 0 for other kinds
func (t Task) Instance() int { return t.instance }

// Valid reports whether t was constructed through this package
func (t Task) Valid() bool {
	switch t.kind {
	case SustainedVowel, PassageReading:
		return t.instance == 0
	case SyllableRepetition:
		return t.instance >= 1 && t.instance <= SyllableInstances
	}
	return false
}

func (t Task) String() string {
	if t.kind == SyllableRepetition {
		return fmt.Sprintf("SR%d", t.instance)
	}
	return t.kind.String()
}

// MarshalText implements encoding.TextMarshaler
func (t Task) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *Task) UnmarshalText(b []byte) error {
	parsed, err := ParseTask(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ExpandTasks parses task names, expanding "SR" to SR1..SR5. Duplicates
// are dropped, first occurrence wins.
func ExpandTasks(names ...string) ([]Task, error) {
	var tasks []Task
	seen := make(map[Task]bool)
	add := func(t Task) {
		if !seen[t] {
			seen[t] = true
			tasks = append(tasks, t)
		}
	}

	for _, name := range names {
		if name == "SR" {
			for i := 1; i <= SyllableInstances; i++ {
				t, _ := SR(i)
				add(t)
			}
			continue
		}
		t, err := ParseTask(name)
		if err != nil {
			return nil, err
		}
		add(t)
	}
	return tasks, nil
}
