package reloc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

// Kind is the instruction-level shape of a relocation.
type Kind uint8

const (
	ArmCall Kind = iota
	ThumbCall
	ArmCallThumb
	ThumbCallArm
	ArmBranch
	Load
	OverlayId
)

var kindNames = [...]string{
	ArmCall:      "arm_call",
	ThumbCall:    "thumb_call",
	ArmCallThumb: "arm_call_thumb",
	ThumbCallArm: "thumb_call_arm",
	ArmBranch:    "arm_branch",
	Load:         "load",
	OverlayId:    "overlay_id",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind parses the textual kind form written by Kind.String.
func ParseKind(text string) (Kind, error) {
	for k, name := range kindNames {
		if text == name {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("reloc: unknown relocation kind %q, must be one of: arm_call, thumb_call, arm_call_thumb, thumb_call_arm, arm_branch, load, overlay_id", text)
}

// Addend is the implicit addend the instruction encoding carries: the ARM or
// Thumb pipeline offset for branches, nothing for data.
func (k Kind) Addend() int64 {
	switch k {
	case ArmCall, ArmCallThumb, ArmBranch:
		return -8
	case ThumbCall, ThumbCallArm:
		return -4
	}
	return 0
}

// CallKind selects the call relocation kind from the caller's and callee's
// modes.
func CallKind(fromThumb, toThumb bool) Kind {
	switch {
	case fromThumb && toThumb:
		return ThumbCall
	case fromThumb:
		return ThumbCallArm
	case toThumb:
		return ArmCallThumb
	}
	return ArmCall
}

// A Relocation rewrites the word at From to reference To in another module.
type Relocation struct {
	From   uint32
	To     uint32
	Addend int32
	Kind   Kind
	Module Module
	// Source is a free-form note about where the relocation came from,
	// written as a trailing comment.
	Source string
}

// NewCall builds a call relocation, picking the kind from both sides' modes.
func NewCall(from, to uint32, module Module, fromThumb, toThumb bool) Relocation {
	return Relocation{From: from, To: to, Kind: CallKind(fromThumb, toThumb), Module: module}
}

// NewBranch builds a plain branch relocation.
func NewBranch(from, to uint32, module Module) Relocation {
	return Relocation{From: from, To: to, Kind: ArmBranch, Module: module}
}

// NewLoad builds a data load relocation.
func NewLoad(from, to uint32, addend int32, module Module) Relocation {
	return Relocation{From: from, To: to, Addend: addend, Kind: Load, Module: module}
}

// TotalAddend is the explicit addend plus the kind's implicit one.
func (r *Relocation) TotalAddend() int64 {
	return int64(r.Addend) + r.Kind.Addend()
}

func (r *Relocation) equal(other *Relocation) bool {
	return r.From == other.From && r.To == other.To && r.Addend == other.Addend &&
		r.Kind == other.Kind && r.Module.Equal(other.Module)
}

func (r *Relocation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "from:%#010x kind:%s to:%#010x", r.From, r.Kind, r.To)
	if r.Addend != 0 {
		fmt.Fprintf(&b, " add:%d", r.Addend)
	}
	fmt.Fprintf(&b, " module:%s", r.Module)
	if r.Source != "" {
		fmt.Fprintf(&b, " // %s", r.Source)
	}
	return b.String()
}

// Relocations is the set of relocations of one module, keyed by source
// address.
type Relocations struct {
	relocations map[uint32]*Relocation
}

// NewRelocations returns an empty set.
func NewRelocations() *Relocations {
	return &Relocations{relocations: make(map[uint32]*Relocation)}
}

// Add inserts a relocation. Adding an identical relocation twice is a no-op;
// a different relocation from the same address is a collision error.
func (rs *Relocations) Add(relocation Relocation) error {
	if existing, ok := rs.relocations[relocation.From]; ok {
		if existing.equal(&relocation) {
			log.Warnf("relocation from %#010x to %#010x in %s is identical to existing one",
				relocation.From, relocation.To, relocation.Module)
			return nil
		}
		return fmt.Errorf(
			"reloc: relocation from %#010x to %#010x in %s collides with existing one to %#010x in %s",
			relocation.From, relocation.To, relocation.Module, existing.To, existing.Module)
	}
	rs.relocations[relocation.From] = &relocation
	return nil
}

// AddCall inserts a call relocation.
func (rs *Relocations) AddCall(from, to uint32, module Module, fromThumb, toThumb bool) error {
	return rs.Add(NewCall(from, to, module, fromThumb, toThumb))
}

// AddLoad inserts a data load relocation.
func (rs *Relocations) AddLoad(from, to uint32, addend int32, module Module) error {
	return rs.Add(NewLoad(from, to, addend, module))
}

// Get returns the relocation at the given source address.
func (rs *Relocations) Get(from uint32) (*Relocation, bool) {
	r, ok := rs.relocations[from]
	return r, ok
}

// Len returns the number of relocations.
func (rs *Relocations) Len() int { return len(rs.relocations) }

// All returns the relocations ordered by source address.
func (rs *Relocations) All() []*Relocation {
	out := make([]*Relocation, 0, len(rs.relocations))
	for _, r := range rs.relocations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].From < out[j].From })
	return out
}

// Range returns the relocations with From in [lo, hi), ordered by source
// address.
func (rs *Relocations) Range(lo, hi uint32) []*Relocation {
	all := rs.All()
	start := sort.Search(len(all), func(i int) bool { return all[i].From >= lo })
	end := sort.Search(len(all), func(i int) bool { return all[i].From >= hi })
	return all[start:end]
}

// Write renders the set in the textual relocation format, one per line.
func (rs *Relocations) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, relocation := range rs.All() {
		if _, err := fmt.Fprintln(bw, relocation.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes the set to a relocations file.
func (rs *Relocations) WriteFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("reloc: create %s: %w", path, err)
	}
	defer file.Close()
	if err := rs.Write(file); err != nil {
		return fmt.Errorf("reloc: write %s: %w", path, err)
	}
	return file.Close()
}

// Read parses the textual relocation format. Line comments start with //.
func Read(r io.Reader) (*Relocations, error) {
	rs := NewRelocations()
	scanner := bufio.NewScanner(r)
	row := 0
	for scanner.Scan() {
		row++
		line := scanner.Text()
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		relocation, err := parseRelocation(line)
		if err != nil {
			return nil, fmt.Errorf("reloc: line %d: %w", row, err)
		}
		rs.relocations[relocation.From] = &relocation
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

// ReadFile parses a relocations file.
func ReadFile(path string) (*Relocations, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reloc: open %s: %w", path, err)
	}
	defer file.Close()
	rs, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("reloc: read %s: %w", path, err)
	}
	return rs, nil
}

func parseRelocation(line string) (Relocation, error) {
	var (
		relocation Relocation
		hasFrom    bool
		hasTo      bool
		hasKind    bool
		hasModule  bool
	)
	for _, word := range strings.Fields(line) {
		key, value, ok := strings.Cut(word, ":")
		if !ok {
			return Relocation{}, fmt.Errorf("expected key:value attribute, got %q", word)
		}
		switch key {
		case "from":
			from, err := parseUint32(value)
			if err != nil {
				return Relocation{}, fmt.Errorf("parse \"from\" address %q: %w", value, err)
			}
			relocation.From, hasFrom = from, true
		case "to":
			to, err := parseUint32(value)
			if err != nil {
				return Relocation{}, fmt.Errorf("parse \"to\" address %q: %w", value, err)
			}
			relocation.To, hasTo = to, true
		case "add":
			addend, err := strconv.ParseInt(value, 0, 32)
			if err != nil {
				return Relocation{}, fmt.Errorf("parse \"add\" addend %q: %w", value, err)
			}
			relocation.Addend = int32(addend)
		case "kind":
			kind, err := ParseKind(value)
			if err != nil {
				return Relocation{}, err
			}
			relocation.Kind, hasKind = kind, true
		case "module":
			module, err := ParseModule(value)
			if err != nil {
				return Relocation{}, err
			}
			relocation.Module, hasModule = module, true
		default:
			return Relocation{}, fmt.Errorf("expected attribute 'from', 'to', 'add', 'kind' or 'module', got %q", key)
		}
	}

	switch {
	case !hasFrom:
		return Relocation{}, fmt.Errorf("missing 'from' attribute")
	case !hasTo:
		return Relocation{}, fmt.Errorf("missing 'to' attribute")
	case !hasKind:
		return Relocation{}, fmt.Errorf("missing 'kind' attribute")
	case !hasModule:
		return Relocation{}, fmt.Errorf("missing 'module' attribute")
	}
	if relocation.Kind == OverlayId && !relocation.Module.IsNone() {
		return Relocation{}, fmt.Errorf("relocation to 'overlay_id' must have \"module:none\"")
	}
	return relocation, nil
}

func parseUint32(value string) (uint32, error) {
	v, err := strconv.ParseUint(value, 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
