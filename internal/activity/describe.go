package activity

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NoChanges is returned when no tracked field differs.
const NoChanges = "with some modifications"

// Member is a user reference with its display name already resolved.
type Member struct {
	ID   uuid.UUID
	Name string
}

// ProjectSnapshot holds the tracked fields of a project at one instant.
type ProjectSnapshot struct {
	Name         string
	Description  string
	Status       string
	StartDate    time.Time
	EndDate      time.Time
	TeamMembers  []Member
	Deliverables []string
	Objectives   []string
}

// TaskSnapshot holds the tracked fields of a task at one instant.
type TaskSnapshot struct {
	Status      string
	Priority    string
	Title       string
	Description string
	StartDate   time.Time
	DueDate     time.Time
	Assignees   []Member
	Importance  int
	Urgency     int
	Effort      int
}

// DescribeProject lists the changes between two project snapshots in field
// order. It never returns an empty list.
func DescribeProject(before, after ProjectSnapshot) []string {
	var c changes
	c.value("name", before.Name, after.Name)
	c.text("description", before.Description, after.Description)
	c.value("status", before.Status, after.Status)
	c.date("start date", before.StartDate, after.StartDate)
	c.date("end date", before.EndDate, after.EndDate)
	c.members("by modifying the team", before.TeamMembers, after.TeamMembers)
	c.items("deliverables", before.Deliverables, after.Deliverables)
	c.items("objectives", before.Objectives, after.Objectives)
	return c.result()
}

// DescribeTask lists the changes between two task snapshots in field order.
// It never returns an empty list.
func DescribeTask(before, after TaskSnapshot) []string {
	var c changes
	c.value("status", before.Status, after.Status)
	c.value("priority", before.Priority, after.Priority)
	c.value("title", before.Title, after.Title)
	c.text("description", before.Description, after.Description)
	c.date("start date", before.StartDate, after.StartDate)
	c.date("due date", before.DueDate, after.DueDate)
	c.members("by changing the assignees", before.Assignees, after.Assignees)
	c.number("importance", before.Importance, after.Importance)
	c.number("urgency", before.Urgency, after.Urgency)
	c.number("effort", before.Effort, after.Effort)
	return c.result()
}

// JoinChanges renders phrases as one clause: "a", "a and b", "a, b and c".
func JoinChanges(phrases []string) string {
	switch len(phrases) {
	case 0:
		return NoChanges
	case 1:
		return phrases[0]
	default:
		last := len(phrases) - 1
		return strings.Join(phrases[:last], ", ") + " and " + phrases[last]
	}
}

type changes []string

func (c *changes) add(format string, args ...any) {
	*c = append(*c, fmt.Sprintf(format, args...))
}

func (c *changes) result() []string {
	if len(*c) == 0 {
		return []string{NoChanges}
	}
	return *c
}

// value compares trimmed scalars and quotes the new value.
func (c *changes) value(field, before, after string) {
	before, after = strings.TrimSpace(before), strings.TrimSpace(after)
	switch {
	case before == after:
	case after == "":
		c.add("by clearing its %s", field)
	default:
		c.add("by changing its %s to %q", field, after)
	}
}

// text compares trimmed free text without echoing it.
func (c *changes) text(field, before, after string) {
	before, after = strings.TrimSpace(before), strings.TrimSpace(after)
	switch {
	case before == after:
	case after == "":
		c.add("by clearing its %s", field)
	default:
		c.add("by changing its %s", field)
	}
}

func (c *changes) number(field string, before, after int) {
	if before != after {
		c.add("by changing its %s to %q", field, strconv.Itoa(after))
	}
}

// date compares calendar days in UTC.
func (c *changes) date(field string, before, after time.Time) {
	if day(before) == day(after) {
		return
	}
	if after.IsZero() {
		c.add("by clearing its %s", field)
		return
	}
	c.add("by changing its %s to %q", field, after.UTC().Format("1/2/2006"))
}

func (c *changes) members(prefix string, before, after []Member) {
	added, removed := diffMembers(before, after)
	var parts []string
	if len(added) > 0 {
		parts = append(parts, "added "+strings.Join(added, ", "))
	}
	if len(removed) > 0 {
		parts = append(parts, "removed "+strings.Join(removed, ", "))
	}
	if len(parts) > 0 {
		c.add("%s: %s", prefix, strings.Join(parts, ", "))
	}
}

func (c *changes) items(field string, before, after []string) {
	added, removed := diffStrings(before, after)
	var parts []string
	if len(added) > 0 {
		parts = append(parts, fmt.Sprintf("added %s %q", field, strings.Join(added, ", ")))
	}
	if len(removed) > 0 {
		parts = append(parts, fmt.Sprintf("removed %s %q", field, strings.Join(removed, ", ")))
	}
	if len(parts) > 0 {
		c.add("by modifying %s: %s", field, strings.Join(parts, ", "))
	}
}

func day(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.DateOnly)
}

func diffMembers(before, after []Member) (added, removed []string) {
	inBefore := make(map[uuid.UUID]struct{}, len(before))
	for _, m := range before {
		inBefore[m.ID] = struct{}{}
	}
	inAfter := make(map[uuid.UUID]struct{}, len(after))
	for _, m := range after {
		inAfter[m.ID] = struct{}{}
	}
	for _, m := range after {
		if _, ok := inBefore[m.ID]; !ok {
			added = append(added, m.Name)
			inBefore[m.ID] = struct{}{}
		}
	}
	for _, m := range before {
		if _, ok := inAfter[m.ID]; !ok {
			removed = append(removed, m.Name)
			inAfter[m.ID] = struct{}{}
		}
	}
	return added, removed
}

func diffStrings(before, after []string) (added, removed []string) {
	set := func(items []string) map[string]struct{} {
		s := make(map[string]struct{}, len(items))
		for _, it := range items {
			if it = strings.TrimSpace(it); it != "" {
				s[it] = struct{}{}
			}
		}
		return s
	}
	inBefore, inAfter := set(before), set(after)
	for _, it := range after {
		it = strings.TrimSpace(it)
		if _, ok := inBefore[it]; !ok && it != "" {
			added = append(added, it)
			inBefore[it] = struct{}{}
		}
	}
	for _, it := range before {
		it = strings.TrimSpace(it)
		if _, ok := inAfter[it]; !ok && it != "" {
			removed = append(removed, it)
			inAfter[it] = struct{}{}
		}
	}
	return added, removed
}
