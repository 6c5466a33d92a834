// Package reloc models cross-module references in a DS binary: which
// addresses point out of their own module, what kind of reference they are,
// and which module(s) own the target.
package reloc

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ModuleKind identifies one concrete module of a ROM: the main ARM9 binary,
// an overlay, or an autoload block.
type ModuleKind struct {
	tag     moduleKindTag
	overlay uint16
	index   uint32
}

type moduleKindTag uint8

const (
	kindArm9 moduleKindTag = iota
	kindOverlay
	kindItcm
	kindDtcm
	kindAutoload
)

func Arm9Kind() ModuleKind              { return ModuleKind{tag: kindArm9} }
func OverlayKind(id uint16) ModuleKind  { return ModuleKind{tag: kindOverlay, overlay: id} }
func ItcmKind() ModuleKind              { return ModuleKind{tag: kindItcm} }
func DtcmKind() ModuleKind              { return ModuleKind{tag: kindDtcm} }
func AutoloadKind(index uint32) ModuleKind {
	return ModuleKind{tag: kindAutoload, index: index}
}

// IsOverlay reports whether the module is an overlay and returns its ID.
func (k ModuleKind) IsOverlay() (uint16, bool) {
	return k.overlay, k.tag == kindOverlay
}

func (k ModuleKind) String() string {
	switch k.tag {
	case kindArm9:
		return "arm9"
	case kindOverlay:
		return fmt.Sprintf("overlay %d", k.overlay)
	case kindItcm:
		return "itcm"
	case kindDtcm:
		return "dtcm"
	case kindAutoload:
		return fmt.Sprintf("autoload %d", k.index)
	}
	return fmt.Sprintf("module kind %d", int(k.tag))
}

// Module says which module(s) a relocation points into. Most references
// resolve to exactly one module; a reference into overlay memory can be
// satisfied by several overlays that are never loaded together, which the
// Overlays variant keeps in candidate order.
type Module struct {
	tag   moduleTag
	id    uint16
	ids   []uint16
	index uint32
}

type moduleTag uint8

const (
	moduleNone moduleTag = iota
	moduleOverlay
	moduleOverlays
	moduleMain
	moduleItcm
	moduleDtcm
	moduleAutoload
)

func NoModule() Module             { return Module{tag: moduleNone} }
func MainModule() Module           { return Module{tag: moduleMain} }
func ItcmModule() Module           { return Module{tag: moduleItcm} }
func DtcmModule() Module           { return Module{tag: moduleDtcm} }
func OverlayModule(id uint16) Module {
	return Module{tag: moduleOverlay, id: id}
}
func AutoloadModule(index uint32) Module {
	return Module{tag: moduleAutoload, index: index}
}

// OverlaysModule records a reference satisfiable by two or more overlays.
func OverlaysModule(ids []uint16) Module {
	return Module{tag: moduleOverlays, ids: slices.Clone(ids)}
}

// IsNone reports whether the relocation points nowhere.
func (m Module) IsNone() bool { return m.tag == moduleNone }

// Equal reports whether two modules are the same variant with the same
// payload.
func (m Module) Equal(other Module) bool {
	if m.tag != other.tag || m.id != other.id || m.index != other.index {
		return false
	}
	return slices.Equal(m.ids, other.ids)
}

// FromModules derives the relocation module from the set of modules that
// contain the target address. Only overlays may be ambiguous; a target owned
// by the main binary or an autoload block alongside anything else is an
// error.
func FromModules(kinds []ModuleKind) (Module, error) {
	if len(kinds) == 0 {
		return NoModule(), nil
	}

	first := kinds[0]
	if first.tag != kindOverlay {
		if len(kinds) > 1 {
			return Module{}, fmt.Errorf("reloc: relocations to %s should be unambiguous", first)
		}
		switch first.tag {
		case kindArm9:
			return MainModule(), nil
		case kindItcm:
			return ItcmModule(), nil
		case kindDtcm:
			return DtcmModule(), nil
		default:
			return AutoloadModule(first.index), nil
		}
	}

	ids := make([]uint16, len(kinds))
	for i, kind := range kinds {
		id, ok := kind.IsOverlay()
		if !ok {
			return Module{}, fmt.Errorf("reloc: relocations to overlays should not go to %s", kind)
		}
		ids[i] = id
	}
	if len(ids) > 1 {
		return Module{tag: moduleOverlays, ids: ids}, nil
	}
	return OverlayModule(ids[0]), nil
}

// FirstModule returns the canonical owner of the target: the sole module for
// unambiguous variants, the first candidate for Overlays, nothing for None.
func (m Module) FirstModule() (ModuleKind, bool) {
	switch m.tag {
	case moduleNone:
		return ModuleKind{}, false
	case moduleOverlay:
		return OverlayKind(m.id), true
	case moduleOverlays:
		return OverlayKind(m.ids[0]), true
	case moduleMain:
		return Arm9Kind(), true
	case moduleItcm:
		return ItcmKind(), true
	case moduleDtcm:
		return DtcmKind(), true
	case moduleAutoload:
		return AutoloadKind(m.index), true
	}
	return ModuleKind{}, false
}

// OtherModules returns the non-canonical owners, in candidate order. Only the
// Overlays variant has any.
func (m Module) OtherModules() []ModuleKind {
	if m.tag != moduleOverlays {
		return nil
	}
	out := make([]ModuleKind, len(m.ids)-1)
	for i, id := range m.ids[1:] {
		out[i] = OverlayKind(id)
	}
	return out
}

func (m Module) String() string {
	switch m.tag {
	case moduleNone:
		return "none"
	case moduleOverlay:
		return fmt.Sprintf("overlay(%d)", m.id)
	case moduleOverlays:
		var b strings.Builder
		b.WriteString("overlays(")
		for i, id := range m.ids {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(int(id)))
		}
		b.WriteByte(')')
		return b.String()
	case moduleMain:
		return "main"
	case moduleItcm:
		return "itcm"
	case moduleDtcm:
		return "dtcm"
	case moduleAutoload:
		return fmt.Sprintf("autoload(%d)", m.index)
	}
	return fmt.Sprintf("module(%d)", int(m.tag))
}

// ParseModule parses the textual module form written by Module.String.
func ParseModule(text string) (Module, error) {
	value, options, hasOptions := strings.Cut(text, "(")
	options = strings.TrimSuffix(options, ")")

	switch value {
	case "none", "main", "itcm", "dtcm":
		if hasOptions && options != "" {
			return Module{}, fmt.Errorf("reloc: relocations to %q have no options, got %q", value, options)
		}
		switch value {
		case "none":
			return NoModule(), nil
		case "main":
			return MainModule(), nil
		case "itcm":
			return ItcmModule(), nil
		default:
			return DtcmModule(), nil
		}
	case "overlay":
		id, err := strconv.ParseUint(options, 10, 16)
		if err != nil {
			return Module{}, fmt.Errorf("reloc: parse overlay ID %q: %w", options, err)
		}
		return OverlayModule(uint16(id)), nil
	case "overlays":
		parts := strings.Split(options, ",")
		ids := make([]uint16, len(parts))
		for i, part := range parts {
			id, err := strconv.ParseUint(part, 10, 16)
			if err != nil {
				return Module{}, fmt.Errorf("reloc: parse overlay ID %q: %w", part, err)
			}
			ids[i] = uint16(id)
		}
		if len(ids) < 2 {
			return Module{}, fmt.Errorf("reloc: relocation to overlays must list two or more IDs, got %v", ids)
		}
		return Module{tag: moduleOverlays, ids: ids}, nil
	case "autoload":
		index, err := strconv.ParseUint(options, 10, 32)
		if err != nil {
			return Module{}, fmt.Errorf("reloc: parse autoload index %q: %w", options, err)
		}
		return AutoloadModule(uint32(index)), nil
	}
	return Module{}, fmt.Errorf("reloc: unknown relocation module %q, must be one of: overlays, overlay, main, itcm, dtcm, autoload, none", value)
}
