package graph

// attackState records a currently attached synthetic pair so it can be
// removed exactly.
type attackState struct {
	tag         string
	attackerKey string
	sybilKeys   [2]string
}

// sybilKeys derives the two synthetic node keys for an attack tag.
func sybilKeys(tag string) [2]string {
	return [2]string{tag + "_1", tag + "_2"}
}

// AttachSyntheticAttack injects a minimal two-node sybil attack against the
// given node: two Sybil-kind nodes, each a member solely of the fresh group
// tag, each connected only to the attacker. The tag is also added to the
// attacker's own group set so the synthetic group is reachable from the
// attacker during group aggregation.
//
// The injection is the exact inverse of DetachSyntheticAttack. Only one
// synthetic pair may be attached at a time.
func (g *Graph) AttachSyntheticAttack(attackerKey, tag string) error {
	if g.attack != nil {
		return groupError("AttachSyntheticAttack", tag, ErrAttackActive)
	}
	attacker, ok := g.nodes[attackerKey]
	if !ok {
		return nodeError("AttachSyntheticAttack", attackerKey, ErrNodeNotFound)
	}
	if g.HasGroup(tag) {
		return groupError("AttachSyntheticAttack", tag, ErrTagInUse)
	}
	keys := sybilKeys(tag)
	for _, k := range keys {
		if _, ok := g.nodes[k]; ok {
			return nodeError("AttachSyntheticAttack", k, ErrDuplicateNode)
		}
	}

	if _, err := g.AddGroup(tag, false); err != nil {
		return err
	}
	membership := map[string]struct{}{tag: {}}
	for _, k := range keys {
		if _, err := g.AddNode(k, KindSybil, membership, 0); err != nil {
			return err
		}
		if err := g.AddEdge(attackerKey, k); err != nil {
			return err
		}
	}
	attacker.Groups[tag] = struct{}{}

	g.attack = &attackState{tag: tag, attackerKey: attackerKey, sybilKeys: keys}
	return nil
}

// DetachSyntheticAttack removes the synthetic pair attached under the given
// tag and strips the tag membership from the attacker. Detaching a tag that
// is not attached signals a calibration bug and fails.
func (g *Graph) DetachSyntheticAttack(tag string) error {
	if g.attack == nil || g.attack.tag != tag {
		return groupError("DetachSyntheticAttack", tag, ErrTagNotFound)
	}
	st := g.attack
	for _, k := range st.sybilKeys {
		if err := g.removeNode(k); err != nil {
			return err
		}
	}
	if attacker, ok := g.nodes[st.attackerKey]; ok {
		delete(attacker.Groups, tag)
	}
	delete(g.groups, tag)
	g.attack = nil
	return nil
}

// AttackActive reports whether a synthetic pair is currently attached.
func (g *Graph) AttackActive() bool {
	return g.attack != nil
}

// SybilNodes returns the currently attached synthetic nodes, if any.
func (g *Graph) SybilNodes() []*Node {
	if g.attack == nil {
		return nil
	}
	out := make([]*Node, 0, 2)
	for _, k := range g.attack.sybilKeys {
		if n, ok := g.nodes[k]; ok {
			out = append(out, n)
		}
	}
	return out
}
