package skills

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestManagerReloadAndLookup(t *testing.T) {
	root := t.TempDir()
	writeTestSkillFile(t, root, "research", "---\nname: research\ndescription: dig into topics\nkeywords: [research, investigate]\n---\nresearch body\n")
	writeTestSkillFile(t, root, "writer", "---\nname: writer\ndescription: writing helper\nkeywords: [write]\n---\nwriter body\n")

	m := NewManager(root)
	if err := m.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	skills := m.Skills()
	if len(skills) != 2 {
		t.Fatalf("skill count = %d, want 2", len(skills))
	}

	skill, ok := m.Get("writer")
	if !ok {
		t.Fatal("expected writer skill")
	}
	if skill.Instructions != "writer body" {
		t.Errorf("instructions = %q", skill.Instructions)
	}
	if _, ok := m.Get("missing"); ok {
		t.Error("Get should miss unknown names")
	}
}

func TestManagerMatch(t *testing.T) {
	root := t.TempDir()
	writeTestSkillFile(t, root, "research", "---\nname: research\ndescription: dig into topics\nkeywords: [research]\n---\nresearch body\n")
	writeTestSkillFile(t, root, "writer", "---\nname: writer\ndescription: writing helper\nkeywords: [write]\n---\nwriter body\n")

	m := NewManager(root)
	if err := m.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	matched := m.Match("please RESEARCH quantum computing")
	if len(matched) != 1 || matched[0].Name != "research" {
		t.Errorf("matched = %v", matched)
	}
	if got := m.Match("hello there"); len(got) != 0 {
		t.Errorf("matched = %v, want none", got)
	}
}

func TestManagerSummary(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)
	if err := m.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := m.Summary(); got != "" {
		t.Errorf("summary of empty manager = %q", got)
	}

	writeTestSkillFile(t, root, "writer", "---\nname: writer\ndescription: writing helper\nkeywords: [write]\n---\nwriter body\n")
	if err := m.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	summary := m.Summary()
	if !strings.HasPrefix(summary, "## Available Skills") {
		t.Errorf("summary = %q", summary)
	}
	if !strings.Contains(summary, "- **writer**: writing helper") {
		t.Errorf("summary = %q", summary)
	}
}

func TestManagerWatchReloadsOnEdit(t *testing.T) {
	root := t.TempDir()
	skillPath := writeTestSkillFile(t, root, "writer", "---\nname: writer\ndescription: writing helper\nkeywords: [write]\n---\nwriter body\n")

	m := NewManager(root)
	if err := m.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	reloaded := make(chan []Skill, 4)
	if err := m.Watch(func(skills []Skill) { reloaded <- skills }); err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer m.Close()

	// Watch is idempotent.
	if err := m.Watch(nil); err != nil {
		t.Fatalf("second watch: %v", err)
	}

	updated := "---\nname: writer\ndescription: sharper writing helper\nkeywords: [write]\n---\nwriter body v2\n"
	if err := os.WriteFile(skillPath, []byte(updated), 0o600); err != nil {
		t.Fatalf("rewrite skill: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case skills := <-reloaded:
			if len(skills) == 1 && skills[0].Description == "sharper writing helper" {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for reload callback")
		}
	}
}
