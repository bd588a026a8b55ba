// Package sessionfile persists review sessions as human- and agent-editable
// documents. The canonical format is a single YAML document with three
// sections (instructions, subject, activities); JSON is supported with the
// same object shape. Loading is deliberately lenient about partial records,
// since agents append activities by hand: missing ids are derived
// deterministically from content, missing timestamps default to load time,
// and nested reply lists are flattened into addresses linkage. Structural
// damage surfaces as *FormatError so callers can keep their in-memory state.
package sessionfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opencodereview/internal/review"
)

// Format selects the on-disk encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat normalizes a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown session format %q (want yaml or json)", s)
}

// Ext returns the file extension for the format, without the dot.
func (f Format) Ext() string {
	if f == FormatJSON {
		return "json"
	}
	return "yaml"
}

// Decoded is the result of parsing a session file.
type Decoded struct {
	Subject      review.Subject
	Instructions string
	Activities   []review.Activity
}

type document struct {
	Instructions string        `yaml:"instructions,omitempty" json:"instructions,omitempty"`
	Subject      *subjectDoc   `yaml:"subject,omitempty" json:"subject,omitempty"`
	Activities   []activityDoc `yaml:"activities" json:"activities"`
}

type subjectDoc struct {
	Type     string `yaml:"type,omitempty" json:"type,omitempty"`
	Provider string `yaml:"provider,omitempty" json:"provider,omitempty"`
	Ref      string `yaml:"ref,omitempty" json:"ref,omitempty"`
	Repo     string `yaml:"repo,omitempty" json:"repo,omitempty"`
}

type authorDoc struct {
	Type  string `yaml:"type,omitempty" json:"type,omitempty"`
	Name  string `yaml:"name,omitempty" json:"name,omitempty"`
	Email string `yaml:"email,omitempty" json:"email,omitempty"`
	Model string `yaml:"model,omitempty" json:"model,omitempty"`
}

type locationDoc struct {
	File  string     `yaml:"file" json:"file"`
	Lines lineRanges `yaml:"lines,omitempty" json:"lines,omitempty"`
}

type activityDoc struct {
	ID         string        `yaml:"id,omitempty" json:"id,omitempty"`
	Type       string        `yaml:"type,omitempty" json:"type,omitempty"`
	Category   string        `yaml:"category,omitempty" json:"category,omitempty"`
	Content    string        `yaml:"content,omitempty" json:"content,omitempty"`
	Author     *authorDoc    `yaml:"author,omitempty" json:"author,omitempty"`
	Location   *locationDoc  `yaml:"location,omitempty" json:"location,omitempty"`
	Supersedes []string      `yaml:"supersedes,omitempty" json:"supersedes,omitempty"`
	Addresses  []string      `yaml:"addresses,omitempty" json:"addresses,omitempty"`
	Created    string        `yaml:"created,omitempty" json:"created,omitempty"`
	Replies    []activityDoc `yaml:"replies,omitempty" json:"replies,omitempty"`
}

// lineRanges marshals as [[start, end], ...] and accepts the lenient forms
// agents produce: a pair, a bare line number, or a "start-end" string.
type lineRanges []review.LineRange

func (l lineRanges) MarshalYAML() (interface{}, error) {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, r := range l {
		r = r.Normalize()
		pair := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		pair.Content = []*yaml.Node{intNode(r.Start), intNode(r.End)}
		seq.Content = append(seq.Content, pair)
	}
	return seq, nil
}

func intNode(v int) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(v)}
}

func (l *lineRanges) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		for _, item := range value.Content {
			r, err := rangeFromNode(item)
			if err != nil {
				return err
			}
			*l = append(*l, r)
		}
		return nil
	case yaml.ScalarNode:
		r, err := rangeFromScalar(value.Value)
		if err != nil {
			return err
		}
		*l = append(*l, r)
		return nil
	}
	return fmt.Errorf("unsupported lines form")
}

func rangeFromNode(item *yaml.Node) (review.LineRange, error) {
	switch item.Kind {
	case yaml.SequenceNode:
		var pair []int
		if err := item.Decode(&pair); err != nil {
			return review.LineRange{}, fmt.Errorf("line range must be numbers: %v", err)
		}
		return rangeFromInts(pair)
	case yaml.ScalarNode:
		return rangeFromScalar(item.Value)
	}
	return review.LineRange{}, fmt.Errorf("unsupported line range form")
}

func rangeFromInts(pair []int) (review.LineRange, error) {
	switch len(pair) {
	case 1:
		return review.LineRange{Start: pair[0], End: pair[0]}.Normalize(), nil
	case 2:
		return review.LineRange{Start: pair[0], End: pair[1]}.Normalize(), nil
	}
	return review.LineRange{}, fmt.Errorf("line range needs 1 or 2 numbers, got %d", len(pair))
}

func rangeFromScalar(s string) (review.LineRange, error) {
	s = strings.TrimSpace(s)
	if start, end, ok := strings.Cut(s, "-"); ok {
		a, err1 := strconv.Atoi(strings.TrimSpace(start))
		b, err2 := strconv.Atoi(strings.TrimSpace(end))
		if err1 != nil || err2 != nil {
			return review.LineRange{}, fmt.Errorf("bad line range %q", s)
		}
		return review.LineRange{Start: a, End: b}.Normalize(), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return review.LineRange{}, fmt.Errorf("bad line number %q", s)
	}
	return review.LineRange{Start: n, End: n}, nil
}

func (l lineRanges) MarshalJSON() ([]byte, error) {
	pairs := make([][2]int, 0, len(l))
	for _, r := range l {
		r = r.Normalize()
		pairs = append(pairs, [2]int{r.Start, r.End})
	}
	return json.Marshal(pairs)
}

func (l *lineRanges) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		// a bare number
		var n int
		if nerr := json.Unmarshal(data, &n); nerr == nil {
			*l = append(*l, review.LineRange{Start: n, End: n})
			return nil
		}
		return err
	}
	for _, item := range items {
		var pair []int
		if err := json.Unmarshal(item, &pair); err == nil {
			r, rerr := rangeFromInts(pair)
			if rerr != nil {
				return rerr
			}
			*l = append(*l, r)
			continue
		}
		var n int
		if err := json.Unmarshal(item, &n); err == nil {
			*l = append(*l, review.LineRange{Start: n, End: n})
			continue
		}
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			r, rerr := rangeFromScalar(s)
			if rerr != nil {
				return rerr
			}
			*l = append(*l, r)
			continue
		}
		return fmt.Errorf("unsupported line range form %s", string(item))
	}
	return nil
}

// Decode parses session file bytes. The format argument picks the parser,
// but content wins over extension: anything whose first non-space byte is
// '{' or '[' is treated as JSON. loadedAt stamps records that carry no
// created time. path is used only for error messages.
func Decode(path string, data []byte, format Format, loadedAt time.Time) (*Decoded, error) {
	var doc document
	var err error
	if looksLikeJSON(data) || format == FormatJSON {
		doc, err = decodeJSONDocument(path, data)
	} else {
		err = yaml.Unmarshal(data, &doc)
		if err != nil {
			err = formatErrf(path, "invalid YAML: %v", err)
		}
	}
	if err != nil {
		return nil, err
	}

	flat := flattenReplies(doc.Activities)
	assignMissingIDs(flat)

	activities := make([]review.Activity, 0, len(flat))
	for _, ad := range flat {
		a, err := ad.toActivity(path, loadedAt)
		if err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}

	return &Decoded{
		Subject:      subjectFromDoc(doc.Subject),
		Instructions: doc.Instructions,
		Activities:   activities,
	}, nil
}

// flattenReplies converts legacy nested reply lists into flat activities
// linked by addresses, preserving document order: each parent is followed by
// its replies, depth-first.
func flattenReplies(docs []activityDoc) []activityDoc {
	var out []activityDoc
	var walk func(doc activityDoc, parentID string)
	walk = func(doc activityDoc, parentID string) {
		replies := doc.Replies
		doc.Replies = nil
		if parentID != "" && len(doc.Addresses) == 0 {
			doc.Addresses = []string{parentID}
		}
		if doc.ID == "" && len(replies) > 0 {
			// A nested parent needs its id before its replies can
			// address it.
			doc.ID = deriveID(doc, 1)
		}
		out = append(out, doc)
		for _, r := range replies {
			walk(r, doc.ID)
		}
	}
	for _, doc := range docs {
		walk(doc, "")
	}
	return out
}

func deriveID(doc activityDoc, occurrence int) string {
	locKey := ""
	if doc.Location != nil {
		parts := make([]string, 0, len(doc.Location.Lines)+1)
		parts = append(parts, doc.Location.File)
		for _, r := range doc.Location.Lines {
			parts = append(parts, r.String())
		}
		locKey = strings.Join(parts, ",")
	}
	authorKey := ""
	if doc.Author != nil {
		authorKey = doc.Author.Type + "/" + doc.Author.Name + "/" + doc.Author.Model
	}
	return shortIDFrom(occurrence, doc.Type, doc.Category, doc.Content, locKey,
		authorKey, strings.Join(doc.Addresses, ","))
}

// assignMissingIDs fills blank ids deterministically so the same file always
// loads to the same id set. Identical records are disambiguated by their
// occurrence index, and derived ids never collide with explicit ones.
func assignMissingIDs(docs []activityDoc) {
	used := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		if d.ID != "" {
			used[d.ID] = struct{}{}
		}
	}
	occurrence := make(map[string]int)
	for i := range docs {
		if docs[i].ID != "" {
			continue
		}
		key := deriveID(docs[i], 0)
		occurrence[key]++
		n := occurrence[key]
		id := deriveID(docs[i], n)
		for {
			if _, taken := used[id]; !taken {
				break
			}
			n++
			id = deriveID(docs[i], n)
		}
		docs[i].ID = id
		used[id] = struct{}{}
	}
}

func (d activityDoc) toActivity(path string, loadedAt time.Time) (review.Activity, error) {
	typ := review.ActivityType(d.Type)
	if d.Type == "" {
		typ = review.TypeComment
	}
	if !review.KnownType(typ) {
		return review.Activity{}, formatErrf(path, "unknown activity type %q", d.Type)
	}
	a := review.Activity{
		ID:         d.ID,
		Type:       typ,
		Category:   review.Category(d.Category),
		Content:    d.Content,
		Author:     authorFromDoc(d.Author),
		Supersedes: append([]string(nil), d.Supersedes...),
		Addresses:  append([]string(nil), d.Addresses...),
		Created:    parseTime(d.Created, loadedAt),
	}
	if a.Category == "" {
		a.Category = defaultCategory(typ)
	}
	if d.Location != nil && d.Location.File != "" {
		loc := review.Location{File: d.Location.File}
		for _, r := range d.Location.Lines {
			loc.Lines = append(loc.Lines, r.Normalize())
		}
		a.Location = &loc
	}
	return a, nil
}

func defaultCategory(t review.ActivityType) review.Category {
	switch t {
	case review.TypeResolution:
		return review.CategoryResolved
	case review.TypeRetraction:
		return review.CategoryRetract
	case review.TypeReviewMark:
		return review.CategoryReviewed
	default:
		return review.CategoryNote
	}
}

func authorFromDoc(d *authorDoc) review.Author {
	if d == nil {
		return review.Author{Type: review.AuthorHuman}
	}
	typ := review.AuthorType(d.Type)
	if typ != review.AuthorHuman && typ != review.AuthorAgent {
		if d.Model != "" {
			typ = review.AuthorAgent
		} else {
			typ = review.AuthorHuman
		}
	}
	return review.Author{Type: typ, Name: d.Name, Email: d.Email, Model: d.Model}
}

func subjectFromDoc(d *subjectDoc) review.Subject {
	if d == nil {
		return review.Subject{Kind: review.KindPatch, Provider: review.ProviderGitUncommitted}
	}
	kind := review.SubjectKind(d.Type)
	if kind != review.KindPatch && kind != review.KindCommit {
		kind = review.KindPatch
	}
	provider := d.Provider
	if provider == "" {
		provider = review.ProviderGitUncommitted
	}
	return review.Subject{Kind: kind, Provider: provider, Ref: d.Ref, Repo: d.Repo}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string, fallback time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback.UTC()
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return fallback.UTC()
}

// Encode renders the session in the given format, refreshing the
// instructions preamble.
func Encode(sess *review.Session, format Format) ([]byte, error) {
	doc := documentFrom(sess, format)
	if format == FormatJSON {
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	}
	return encodeYAML(doc)
}

func documentFrom(sess *review.Session, format Format) document {
	subject := sess.Subject()
	doc := document{
		Instructions: Instructions(format),
		Subject: &subjectDoc{
			Type:     string(subject.Kind),
			Provider: subject.Provider,
			Ref:      subject.Ref,
			Repo:     subject.Repo,
		},
		Activities: make([]activityDoc, 0, sess.LogLen()),
	}
	for _, a := range sess.Activities() {
		doc.Activities = append(doc.Activities, docFromActivity(a))
	}
	return doc
}

func docFromActivity(a review.Activity) activityDoc {
	d := activityDoc{
		ID:         a.ID,
		Type:       string(a.Type),
		Category:   string(a.Category),
		Content:    a.Content,
		Supersedes: a.Supersedes,
		Addresses:  a.Addresses,
	}
	if !a.Created.IsZero() {
		d.Created = a.Created.UTC().Format(time.RFC3339)
	}
	if !isZeroAuthor(a.Author) {
		ad := &authorDoc{Name: a.Author.Name, Email: a.Author.Email, Model: a.Author.Model}
		if a.Author.IsAgent() {
			ad.Type = string(review.AuthorAgent)
		}
		d.Author = ad
	}
	if a.Location != nil {
		d.Location = &locationDoc{File: a.Location.File, Lines: lineRanges(a.Location.Lines)}
	}
	return d
}

func isZeroAuthor(a review.Author) bool {
	return a.Name == "" && a.Email == "" && a.Model == "" && !a.IsAgent()
}

func encodeYAML(doc document) ([]byte, error) {
	var root yaml.Node
	if err := root.Encode(doc); err != nil {
		return nil, err
	}
	styleNode(&root)
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&root); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// styleNode applies literal block style to multiline scalars under the
// instructions and content keys, keeping the file pleasant to hand-edit.
func styleNode(n *yaml.Node) {
	if n.Kind != yaml.MappingNode {
		for _, c := range n.Content {
			styleNode(c)
		}
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		switch key.Value {
		case "instructions", "content":
			if val.Kind == yaml.ScalarNode && strings.Contains(val.Value, "\n") {
				val.Style = yaml.LiteralStyle
			}
		default:
			styleNode(val)
		}
	}
}
