package erc

// ServerParams holds the parameters a server advertises through RPL_ISUPPORT
// (numeric 005): an ordered mapping of name to optional value. Order is the
// order of first announcement; re-announcing a name updates it in place.
type ServerParams struct {
	entries []serverParam
}

type serverParam struct {
	name     string
	value    string
	hasValue bool
}

func (p *ServerParams) set(name, value string, hasValue bool) {
	for i := range p.entries {
		if p.entries[i].name == name {
			p.entries[i].value = value
			p.entries[i].hasValue = hasValue
			return
		}
	}
	p.entries = append(p.entries, serverParam{name, value, hasValue})
}

// Get returns the value advertised for name. ok is false when the name was
// never announced; a name announced without a value (e.g. "EXCEPTS") yields
// ("", true).
func (p ServerParams) Get(name string) (value string, ok bool) {
	for _, e := range p.entries {
		if e.name == name {
			return e.value, true
		}
	}
	return "", false
}

// Names returns the announced parameter names in announcement order.
func (p ServerParams) Names() []string {
	names := make([]string, len(p.entries))
	for i, e := range p.entries {
		names[i] = e.name
	}
	return names
}

func (p *ServerParams) clone() ServerParams {
	return ServerParams{entries: append([]serverParam(nil), p.entries...)}
}
