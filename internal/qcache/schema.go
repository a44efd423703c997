package qcache

import (
	"fmt"
	"sort"

	"github.com/roach88/ogm/internal/canon"
	"github.com/roach88/ogm/internal/meta"
)

// SchemaFingerprint hashes everything in the mapping metadata that can
// change compiled text: labels, hierarchy, property names, relation kinds
// and embedding. Two repositories with the same fingerprint compile every
// query identically.
func SchemaFingerprint(repo *meta.Repository) (string, error) {
	classes := repo.Classes()
	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })

	out := make([]any, 0, len(classes))
	for _, c := range classes {
		members := make([]any, 0, len(c.Members))
		for _, m := range c.Members {
			members = append(members, memberShape(m))
		}
		out = append(out, map[string]any{
			"name":    c.Name,
			"labels":  c.Labels(),
			"super":   c.Super,
			"edge":    c.MappedAsEdge,
			"members": members,
		})
	}

	data, err := canon.Marshal(map[string]any{"classes": out})
	if err != nil {
		return "", fmt.Errorf("schema fingerprint: %w", err)
	}
	return canon.HashWithDomain(canon.DomainSchema, data), nil
}

func memberShape(m *meta.Member) map[string]any {
	overrides := make([]any, 0, len(m.EmbeddedMembers))
	for _, o := range m.EmbeddedMembers {
		overrides = append(overrides, o.Member+"="+o.Column)
	}
	return map[string]any{
		"name":        m.Name,
		"column":      m.Column,
		"type":        m.Type,
		"container":   m.Container.String(),
		"key":         m.Key,
		"relation":    m.Relation.String(),
		"mappedBy":    m.MappedBy,
		"embedded":    m.Embedded,
		"overrides":   overrides,
		"owner":       m.OwnerMember,
		"serialized":  m.Serialized,
		"persistence": int(m.Persistence),
		"converter":   m.Converter,
	}
}
