package types

import (
	"fmt"
	"strings"
)

// Format renders the normal form of id the way it is written in source.
func (t *Table) Format(id TypeID) string {
	var sb strings.Builder
	t.format(&sb, id, 0)
	return sb.String()
}

func (t *Table) format(sb *strings.Builder, id TypeID, depth int) {
	if depth > 32 {
		sb.WriteString("...")
		return
	}
	id = t.Normalize(id)
	ty, ok := t.Lookup(id)
	if !ok {
		sb.WriteString("<invalid>")
		return
	}
	switch ty.Kind {
	case KindError:
		sb.WriteString("<error>")
	case KindBool, KindChar, KindInt, KindReal, KindObject:
		sb.WriteString(ty.Kind.String())
	case KindSubrange:
		sb.WriteString(t.strings.MustLookup(t.subranges[ty.Payload].Name))
	case KindSet, KindMultiset, KindSeq:
		name := ty.Kind.String()
		if ty.Kind == KindSet && !ty.Finite {
			name = "iset"
		}
		sb.WriteString(name)
		sb.WriteByte('<')
		t.format(sb, ty.Elem, depth+1)
		sb.WriteByte('>')
	case KindMap:
		if ty.Finite {
			sb.WriteString("map<")
		} else {
			sb.WriteString("imap<")
		}
		t.format(sb, ty.Elem, depth+1)
		sb.WriteString(", ")
		t.format(sb, ty.Value, depth+1)
		sb.WriteByte('>')
	case KindUser:
		u := t.users[ty.Payload]
		if u.Qualifier != 0 {
			sb.WriteString(t.strings.MustLookup(u.Qualifier))
			sb.WriteByte('.')
		}
		sb.WriteString(t.strings.MustLookup(u.Name))
		if len(u.Args) > 0 {
			sb.WriteByte('<')
			for i, a := range u.Args {
				if i > 0 {
					sb.WriteString(", ")
				}
				t.format(sb, a, depth+1)
			}
			sb.WriteByte('>')
		}
	case KindProxy:
		p := t.proxies[ty.Payload]
		if p.Kind == ProxyFree {
			fmt.Fprintf(sb, "?%d", id)
		} else {
			fmt.Fprintf(sb, "?%d:%s", id, p.Kind)
		}
	default:
		sb.WriteString(ty.Kind.String())
	}
}
