package meta

import "strings"

// PropertyName returns the property key a member is stored under.
//
// chain is the embedded owner chain, outermost first. Outside embedding the
// member's column name is used. Inside embedding an override declared on the
// immediate owner wins; otherwise the owners' column names and the member
// name are joined with ".".
func PropertyName(chain []*Member, m *Member) string {
	if len(chain) == 0 {
		return m.ColumnName()
	}
	if col, ok := chain[len(chain)-1].Override(m.Name); ok {
		return col
	}
	parts := make([]string, 0, len(chain)+1)
	for _, owner := range chain {
		parts = append(parts, owner.ColumnName())
	}
	parts = append(parts, m.Name)
	return strings.Join(parts, ".")
}

// IsEmbedded reports whether m is stored flattened into its owner's
// container, either by its own declaration or because the immediate owner's
// embedded overrides list it.
func IsEmbedded(chain []*Member, m *Member) bool {
	if m.Embedded {
		return true
	}
	if len(chain) > 0 {
		return chain[len(chain)-1].EmbedsMember(m.Name)
	}
	return false
}
