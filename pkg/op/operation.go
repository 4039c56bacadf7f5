package op

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/strata-vcs/strata/pkg/object"
)

// Operation is one immutable node in the operation DAG: it points at the
// view it produced, its parent operation(s), and descriptive metadata. An
// operation with multiple parents records the reconciliation of divergent
// heads; the initial operation of a repository has none.
type Operation struct {
	Parents     []object.ID
	View        object.ID
	When        int64 // unix seconds
	Description string
	Username    string
	Hostname    string
}

// MarshalOperation serializes an operation:
//
//	view H
//	parent H     (zero or more)
//	when T
//	username U   (optional)
//	hostname H   (optional)
//
//	description
func MarshalOperation(o *Operation) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "view %s\n", string(o.View))
	for _, p := range o.Parents {
		fmt.Fprintf(&buf, "parent %s\n", string(p))
	}
	fmt.Fprintf(&buf, "when %d\n", o.When)
	if o.Username != "" {
		fmt.Fprintf(&buf, "username %s\n", o.Username)
	}
	if o.Hostname != "" {
		fmt.Fprintf(&buf, "hostname %s\n", o.Hostname)
	}
	buf.WriteByte('\n')
	buf.WriteString(o.Description)
	return buf.Bytes()
}

// UnmarshalOperation parses an operation from its serialized form.
func UnmarshalOperation(data []byte) (*Operation, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("unmarshal operation: missing header/description separator")
	}
	header := string(data[:idx])
	description := string(data[idx+2:])

	o := &Operation{Description: description}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal operation: malformed header line %q", line)
		}
		switch key {
		case "view":
			o.View = object.ID(val)
		case "parent":
			o.Parents = append(o.Parents, object.ID(val))
		case "when":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("unmarshal operation: bad timestamp %q: %w", val, err)
			}
			o.When = ts
		case "username":
			o.Username = val
		case "hostname":
			o.Hostname = val
		default:
			return nil, fmt.Errorf("unmarshal operation: unknown header key %q", key)
		}
	}
	if o.View == "" {
		return nil, fmt.Errorf("unmarshal operation: missing view")
	}
	return o, nil
}
