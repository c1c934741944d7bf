package model

// BootSet binds a node/group/role selector to a set of boot artifacts, a
// CFS configuration reference, and a rootfs provider. It is one named
// entry within a SessionTemplate.
type BootSet struct {
	Name                 string         `json:"name" bson:"name"`
	Node                 []string       `json:"node_list,omitempty" bson:"node_list,omitempty"`
	Groups               []string       `json:"node_groups,omitempty" bson:"node_groups,omitempty"`
	Roles                []string       `json:"node_roles,omitempty" bson:"node_roles,omitempty"`
	Arch                 string         `json:"arch,omitempty" bson:"arch,omitempty"`
	BootArtifacts        *BootArtifacts `json:"boot_artifacts,omitempty" bson:"boot_artifacts,omitempty"`
	CFSConfiguration     string         `json:"cfs_configuration,omitempty" bson:"cfs_configuration,omitempty"`
	RootfsProvider       string         `json:"rootfs_provider,omitempty" bson:"rootfs_provider,omitempty"`
	RootfsProviderPassthrough string    `json:"rootfs_provider_passthrough,omitempty" bson:"rootfs_provider_passthrough,omitempty"`
}

// HasSelector reports whether the boot set names at least one node,
// group, or role.
func (b *BootSet) HasSelector() bool {
	return len(b.Node) > 0 || len(b.Groups) > 0 || len(b.Roles) > 0
}

// SessionTemplate describes one or more boot sets, keyed by
// <tenant>/<name>. Templates are immutable except via PATCH on the same
// tenant; operators read but never mutate them.
type SessionTemplate struct {
	Name     string             `json:"name" bson:"_template_name"`
	Tenant   string             `json:"tenant" bson:"tenant"`
	BootSets map[string]BootSet `json:"boot_sets" bson:"boot_sets"`
}

// Validate checks the creation-time invariants from the server contract:
// every boot set has at least one selector, boot set names match their map
// key, and, when knownArch is non-nil, every architecture is in it (a
// nil knownArch skips the architecture check).
func (t *SessionTemplate) Validate(knownArch map[string]bool) []string {
	var problems []string
	if len(t.BootSets) == 0 {
		problems = append(problems, "template has no boot sets")
	}
	for key, bs := range t.BootSets {
		if bs.Name != "" && bs.Name != key {
			problems = append(problems, "boot set "+key+": name does not match map key")
		}
		if !bs.HasSelector() {
			problems = append(problems, "boot set "+key+": no node/group/role selector")
		}
		if bs.Arch != "" && knownArch != nil && !knownArch[bs.Arch] {
			problems = append(problems, "boot set "+key+": unknown architecture "+bs.Arch)
		}
	}
	return problems
}
