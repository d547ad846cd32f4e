// Package editapplier mutates a decoded save Document in place according to
// an editstate.EditState, mirroring in reverse the projections summary
// derives. It never deletes a key the caller didn't explicitly ask to
// remove, and leaves a field's subtree untouched when the corresponding
// EditState field is absent.
package editapplier

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/maruel/natural"

	"vaultcodec/common"
	"vaultcodec/document"
	"vaultcodec/editstate"
)

// sduFamily describes one storage-deposit-unit track: its node-name prefix,
// the maximum tier it can be raised to, and how to read the requested tier
// out of an EditState.SDULevelsEdit.
type sduFamily struct {
	prefix string
	maxTier int32
	get     func(*editstate.SDULevelsEdit) *int32
}

var sduFamilies = []sduFamily{
	{"Ammo_Pistol_", 7, func(e *editstate.SDULevelsEdit) *int32 { return e.Pistol }},
	{"Ammo_SMG_", 7, func(e *editstate.SDULevelsEdit) *int32 { return e.SMG }},
	{"Ammo_AR_", 7, func(e *editstate.SDULevelsEdit) *int32 { return e.AssaultRifle }},
	{"Ammo_SG_", 7, func(e *editstate.SDULevelsEdit) *int32 { return e.Shotgun }},
	{"Ammo_SR_", 7, func(e *editstate.SDULevelsEdit) *int32 { return e.Sniper }},
	{"Backpack_", 8, func(e *editstate.SDULevelsEdit) *int32 { return e.Backpack }},
	{"Bank_", 8, func(e *editstate.SDULevelsEdit) *int32 { return e.Bank }},
	{"Lost_Loot_", 8, func(e *editstate.SDULevelsEdit) *int32 { return e.LostLoot }},
}

// sduTierCost is the points_spent cost of raising a single family by one
// tier, indexed 1..8; tiers beyond the table cost nothing further.
var sduTierCost = map[int32]int64{
	1: 5, 2: 10, 3: 20, 4: 30, 5: 50, 6: 80, 7: 120, 8: 235,
}

// ApplyEdits mutates doc according to edits. Absent EditState fields leave
// their corresponding subtree untouched; present fields overwrite exactly
// the keys they name.
func ApplyEdits(doc *document.Document, edits *editstate.EditState) error {
	if edits == nil {
		return nil
	}

	state := resolveState(doc, edits)

	applyScalars(state, edits)
	if err := applyExperience(state, edits); err != nil {
		return err
	}
	applyCurrenciesAndAmmo(state, edits)
	if err := applyProgression(doc, state, edits); err != nil {
		return err
	}
	if err := applyInventory(state, edits); err != nil {
		return err
	}
	applyEquipSlots(state, edits)
	applyCosmetics(state, edits)
	if err := applyUniqueRewards(state, edits); err != nil {
		return err
	}
	if err := applyMissions(doc, state, edits); err != nil {
		return err
	}
	applyUnlockables(doc, edits)

	return nil
}

// resolveState finds (or creates, if any edit needs it) the top-level
// "state" struct, honoring whichever of the two locations ("state.progression"
// vs root "progression", same for missions) summary observed the save using.
func resolveState(doc *document.Document, edits *editstate.EditState) *document.Document {
	state := doc.Get("state")
	needsState := edits.CharGUID != nil || edits.Class != nil || edits.CharName != nil ||
		edits.PlayerDifficulty != nil || len(edits.Experience) > 0 ||
		len(edits.Currencies) > 0 || len(edits.Ammo) > 0 || len(edits.Inventory) > 0 ||
		len(edits.EquipSlotsUnlocked) > 0 || edits.CosmeticsCharacter != nil ||
		edits.CosmeticsEcho != nil || edits.CosmeticsVehicle != nil ||
		len(edits.UniqueRewardsAdd) > 0 || len(edits.UniqueRewardsRemove) > 0 || edits.UniqueRewardsDirty
	if state == nil && needsState {
		state = document.Struct()
		doc.Set("state", state)
	}
	return state
}

func applyScalars(state *document.Document, edits *editstate.EditState) {
	if state == nil {
		return
	}
	if edits.CharGUID != nil {
		state.Set("char_guid", document.String(*edits.CharGUID))
	}
	if edits.Class != nil {
		state.Set("class", document.String(*edits.Class))
	}
	if edits.CharName != nil {
		state.Set("char_name", document.String(*edits.CharName))
	}
	if edits.PlayerDifficulty != nil {
		state.Set("player_difficulty", document.String(*edits.PlayerDifficulty))
	}
}

func applyExperience(state *document.Document, edits *editstate.EditState) error {
	if state == nil || len(edits.Experience) == 0 {
		return nil
	}
	exp := state.Get("experience")
	if exp == nil || exp.Kind != document.KindList {
		exp = document.List()
		state.Set("experience", exp)
	}
	for _, e := range edits.Experience {
		entry := findExperienceEntry(exp, e.Type)
		if entry == nil {
			entry = document.Struct(document.Field{Name: "type", Value: document.String(e.Type)})
			exp.List = append(exp.List, entry)
		}
		if e.Level != nil {
			entry.Set("level", document.Int(*e.Level))
		}
		if e.Points != nil {
			entry.Set("points", document.Int(*e.Points))
		} else if strings.EqualFold(e.Type, "specialization") {
			// specialization.points falls back to ability_points when the
			// caller only wants to move specialization level.
			if ap := entry.Get("ability_points"); ap != nil {
				entry.Set("points", ap)
			}
		}
	}
	return nil
}

func findExperienceEntry(exp *document.Document, typ string) *document.Document {
	for _, e := range exp.List {
		if e == nil || e.Kind != document.KindStruct {
			continue
		}
		if t := e.Get("type"); t != nil && t.Kind == document.KindString && strings.EqualFold(t.Str, typ) {
			return e
		}
	}
	return nil
}

func applyCurrenciesAndAmmo(state *document.Document, edits *editstate.EditState) {
	if state == nil {
		return
	}
	if len(edits.Currencies) > 0 {
		cur := state.Get("currencies")
		if cur == nil || cur.Kind != document.KindStruct {
			cur = document.Struct()
			state.Set("currencies", cur)
		}
		for k, v := range edits.Currencies {
			cur.Set(k, document.Int(v))
		}
	}
	if len(edits.Ammo) > 0 {
		ammo := state.Get("ammo")
		if ammo == nil || ammo.Kind != document.KindStruct {
			ammo = document.Struct()
			state.Set("ammo", ammo)
		}
		for k, v := range edits.Ammo {
			value := v
			if edits.AmmoMode == common.AmmoModeTiered {
				value = tierToRawAmmo(value)
			}
			ammo.Set(k, document.Int(int64(value)))
		}
	}
}

func tierToRawAmmo(tier int32) int32 {
	tiers := []int32{0, 50, 100, 200, 350, 550, 800, 1100}
	if int(tier) < 0 || int(tier) >= len(tiers) {
		return tier
	}
	return tiers[tier]
}

func applyProgression(doc, state *document.Document, edits *editstate.EditState) error {
	needsProgression := edits.PointPools != nil || edits.SDULevels != nil || edits.SDULevelsDirty || len(edits.SkillTreeOverrides) > 0
	if !needsProgression {
		return nil
	}

	var prog *document.Document
	if edits.ProgressionInState {
		if state == nil {
			return fmt.Errorf("editapplier: progression edit requires state but state is absent")
		}
		prog = state.Get("progression")
		if prog == nil {
			prog = document.Struct()
			state.Set("progression", prog)
		}
	} else {
		prog = doc.Get("progression")
		if prog == nil {
			prog = document.Struct()
			doc.Set("progression", prog)
		}
	}

	if edits.PointPools != nil {
		applyPointPools(prog, edits.PointPools)
	}

	graphs := prog.Get("graphs")
	if graphs == nil || graphs.Kind != document.KindList {
		graphs = document.List()
		prog.Set("graphs", graphs)
	}

	sduDirty := edits.SDULevelsDirty || (edits.SDULevels != nil && sduLevelsHasAnyValue(edits.SDULevels))
	if sduDirty {
		rebuildSDUGraph(graphs, edits.SDULevels)
	}

	for _, override := range edits.SkillTreeOverrides {
		applySkillTreeOverride(graphs, override)
	}

	return nil
}

func applyPointPools(prog *document.Document, edit *editstate.PointPoolsEdit) {
	pools := prog.Get("point_pools")
	if pools == nil || pools.Kind != document.KindStruct {
		pools = document.Struct()
		prog.Set("point_pools", pools)
	}
	if edit.CharacterProgress != nil {
		pools.Set("character_progress", document.Int(*edit.CharacterProgress))
	}
	if edit.SpecializationTokens != nil {
		pools.Set("specialization_tokens", document.Int(*edit.SpecializationTokens))
	}
	if edit.EchoTokens != nil {
		pools.Set("echo_tokens", document.Int(*edit.EchoTokens))
	}
	for k, v := range edit.Other {
		pools.Set(k, document.Int(v))
	}
}

func sduLevelsHasAnyValue(e *editstate.SDULevelsEdit) bool {
	return e.Backpack != nil || e.Pistol != nil || e.SMG != nil || e.AssaultRifle != nil ||
		e.Shotgun != nil || e.Sniper != nil || e.Bank != nil || e.LostLoot != nil
}

// rebuildSDUGraph replaces the sdu_upgrades graph's nodes entirely from the
// requested per-family tiers. Heavy and Grenade ammo families are never
// emitted (Open Question (a): the save format models them outside this
// graph). Bank and Lost_Loot are auto-filled to their max tier if any SDU
// family is being raised but those two were left unspecified or at 0, matching the
// base game's behavior of unlocking storage tabs together.
func rebuildSDUGraph(graphs *document.Document, edit *editstate.SDULevelsEdit) {
	var target *document.Document
	for _, g := range graphs.List {
		if n := g.Get("name"); n != nil && n.Kind == document.KindString && n.Str == "sdu_upgrades" {
			target = g
			break
		}
	}
	if target == nil {
		target = document.Struct(document.Field{Name: "name", Value: document.String("sdu_upgrades")})
		graphs.List = append(graphs.List, target)
	}

	anyNonzero := edit != nil && hasNonzeroSDU(edit)

	var nodes []*document.Document
	for _, fam := range sduFamilies {
		tier := int32(0)
		if edit != nil {
			if v := fam.get(edit); v != nil {
				tier = *v
			}
		}
		if tier == 0 && anyNonzero && (fam.prefix == "Bank_" || fam.prefix == "Lost_Loot_") {
			tier = fam.maxTier
		}
		if tier > fam.maxTier {
			tier = fam.maxTier
		}
		for t := int32(1); t <= tier; t++ {
			nodes = append(nodes, sduNode(fam.prefix, t))
		}
	}

	target.Set("nodes", document.List(nodes...))
}

func hasNonzeroSDU(e *editstate.SDULevelsEdit) bool {
	check := func(v *int32) bool { return v != nil && *v != 0 }
	return check(e.Backpack) || check(e.Pistol) || check(e.SMG) || check(e.AssaultRifle) ||
		check(e.Shotgun) || check(e.Sniper) || check(e.Bank) || check(e.LostLoot)
}

func sduNode(prefix string, tier int32) *document.Document {
	suffix := strconv.Itoa(int(tier))
	if len(suffix) < 2 {
		suffix = "0" + suffix
	}
	name := prefix + suffix
	cost := sduTierCost[tier]
	return document.Struct(
		document.Field{Name: "name", Value: document.String(name)},
		document.Field{Name: "points_spent", Value: document.Int(cost)},
	)
}

func applySkillTreeOverride(graphs *document.Document, override editstate.SkillTreeOverride) {
	var target *document.Document
	for _, g := range graphs.List {
		if n := g.Get("name"); n != nil && n.Kind == document.KindString && n.Str == override.Name {
			target = g
			break
		}
	}
	if target == nil {
		fields := []document.Field{{Name: "name", Value: document.String(override.Name)}}
		if override.GroupDefName != "" {
			fields = append(fields, document.Field{Name: "group_def_name", Value: document.String(override.GroupDefName)})
		}
		target = document.Struct(fields...)
		graphs.List = append(graphs.List, target)
	} else if override.GroupDefName != "" {
		target.Set("group_def_name", document.String(override.GroupDefName))
	}

	nodes := target.Get("nodes")
	if nodes == nil || nodes.Kind != document.KindList {
		nodes = document.List()
		target.Set("nodes", nodes)
	}

	names := make([]string, 0, len(override.Nodes))
	for name := range override.Nodes {
		names = append(names, name)
	}
	sort.Sort(natural.StringSlice(names))

	for _, name := range names {
		points := override.Nodes[name]
		var node *document.Document
		for _, n := range nodes.List {
			if nm := n.Get("name"); nm != nil && nm.Kind == document.KindString && nm.Str == name {
				node = n
				break
			}
		}
		if node == nil {
			node = document.Struct(document.Field{Name: "name", Value: document.String(name)})
			nodes.List = append(nodes.List, node)
		}
		node.Set("points_spent", document.Int(points))
	}
}

func applyInventory(state *document.Document, edits *editstate.EditState) error {
	if state == nil || len(edits.Inventory) == 0 {
		return nil
	}
	backpack, err := document.At(state, "inventory.items.backpack")
	if err != nil {
		var notFound *document.PathSegmentNotFoundError
		if !asNotFound(err, &notFound) {
			return err
		}
		backpack = document.Struct()
		if err := document.SetAt(state, "inventory.items.backpack", backpack); err != nil {
			return err
		}
	}
	for _, item := range edits.Inventory {
		if item.Remove {
			removeField(backpack, item.Slot)
			continue
		}
		fields := []document.Field{{Name: "serial", Value: document.String(item.Serial)}}
		if item.StateFlags != nil {
			fields = append(fields, document.Field{Name: "state_flags", Value: document.String(*item.StateFlags)})
		}
		backpack.Set(item.Slot, document.Struct(fields...))
	}
	return nil
}

func asNotFound(err error, target **document.PathSegmentNotFoundError) bool {
	nf, ok := err.(*document.PathSegmentNotFoundError)
	if ok {
		*target = nf
	}
	return ok
}

func removeField(d *document.Document, name string) {
	out := d.Fields[:0]
	for _, f := range d.Fields {
		if f.Name != name {
			out = append(out, f)
		}
	}
	d.Fields = out
}

func applyEquipSlots(state *document.Document, edits *editstate.EditState) {
	if state == nil || len(edits.EquipSlotsUnlocked) == 0 {
		return
	}
	seen := map[int32]bool{}
	var out []int32
	for _, v := range edits.EquipSlotsUnlocked {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	items := make([]*document.Document, len(out))
	for i, v := range out {
		items[i] = document.Int(int64(v))
	}
	state.Set("equip_slots_unlocked", document.List(items...))
}

func applyCosmetics(state *document.Document, edits *editstate.EditState) {
	if state == nil {
		return
	}
	rewriteActorParts(state, "character", edits.CosmeticsCharacter)
	rewriteActorParts(state, "echo4", edits.CosmeticsEcho)
	rewriteActorParts(state, "vehicle", edits.CosmeticsVehicle)
}

// rewriteActorParts merges overrides into the existing "Key[Value]"/"Key"
// comma list at state.gbxactorparts.<which>, preserving entries the caller
// didn't mention (including "gap" placeholders) and their relative order.
func rewriteActorParts(state *document.Document, which string, overrides map[string]string) {
	if overrides == nil {
		return
	}
	path := "gbxactorparts." + which
	existing, err := document.At(state, path)
	var raw string
	if err == nil && existing != nil && existing.Kind == document.KindString {
		raw = existing.Str
	}

	type kv struct {
		key   string
		value string
		isGap bool
	}
	var order []kv
	seen := map[string]int{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.EqualFold(part, "gap") {
			order = append(order, kv{isGap: true})
			continue
		}
		key, value := part, ""
		if i := strings.IndexByte(part, '['); i >= 0 && strings.HasSuffix(part, "]") {
			key, value = part[:i], part[i+1:len(part)-1]
		}
		seen[key] = len(order)
		order = append(order, kv{key: key, value: value})
	}

	for key, value := range overrides {
		if idx, ok := seen[key]; ok {
			order[idx].value = value
			continue
		}
		seen[key] = len(order)
		order = append(order, kv{key: key, value: value})
	}

	parts := make([]string, 0, len(order))
	for _, e := range order {
		switch {
		case e.isGap:
			parts = append(parts, "gap")
		case e.value == "":
			parts = append(parts, e.key)
		default:
			parts = append(parts, e.key+"["+e.value+"]")
		}
	}

	if err := document.SetAt(state, path, document.String(strings.Join(parts, ","))); err != nil {
		// intermediate structs are auto-created by SetAt; this can only fail
		// if "gbxactorparts" already holds a non-struct value, which we leave
		// alone rather than clobber.
		return
	}
}

func applyUniqueRewards(state *document.Document, edits *editstate.EditState) error {
	if state == nil {
		return nil
	}
	if len(edits.UniqueRewardsAdd) == 0 && len(edits.UniqueRewardsRemove) == 0 && !edits.UniqueRewardsDirty {
		return nil
	}

	existing := map[string]bool{}
	if cur := state.Get("unique_rewards"); cur != nil && cur.Kind == document.KindList {
		for _, item := range cur.List {
			if item != nil && item.Kind == document.KindString {
				existing[item.Str] = true
			}
		}
	}
	for _, r := range edits.UniqueRewardsRemove {
		delete(existing, r)
	}
	for _, r := range edits.UniqueRewardsAdd {
		existing[r] = true
	}

	var out []string
	for r := range existing {
		out = append(out, r)
	}
	sort.Sort(natural.StringSlice(out))

	if len(out) == 0 {
		removeField(state, "unique_rewards")
		return nil
	}
	items := make([]*document.Document, len(out))
	for i, r := range out {
		items[i] = document.String(r)
	}
	state.Set("unique_rewards", document.List(items...))
	return nil
}

func applyMissions(doc, state *document.Document, edits *editstate.EditState) error {
	needsMissions := edits.TrackedMissionsDirty || len(edits.MissionStatuses) > 0
	if !needsMissions {
		return nil
	}

	var missions *document.Document
	if edits.MissionsInState {
		if state == nil {
			return fmt.Errorf("editapplier: mission edit requires state but state is absent")
		}
		missions = state.Get("missions")
		if missions == nil {
			missions = document.Struct()
			state.Set("missions", missions)
		}
	} else {
		missions = doc.Get("missions")
		if missions == nil {
			missions = document.Struct()
			doc.Set("missions", missions)
		}
	}

	if edits.TrackedMissionsDirty {
		items := make([]*document.Document, 0, len(edits.TrackedMissions)+1)
		for _, m := range edits.TrackedMissions {
			items = append(items, document.String(m))
		}
		if edits.TrackedMissionsNeedNone {
			items = append(items, document.String("none"))
		}
		missions.Set("tracked_missions", document.List(items...))
	}

	if len(edits.MissionStatuses) > 0 {
		localSets := missions.Get("local_sets")
		if localSets == nil || localSets.Kind != document.KindStruct {
			localSets = document.Struct()
			missions.Set("local_sets", localSets)
		}
		for _, ms := range edits.MissionStatuses {
			setDoc := localSets.Get(ms.Set)
			if setDoc == nil || setDoc.Kind != document.KindStruct {
				setDoc = document.Struct()
				localSets.Set(ms.Set, setDoc)
			}
			missionsMap := setDoc.Get("missions")
			if missionsMap == nil || missionsMap.Kind != document.KindStruct {
				missionsMap = document.Struct()
				setDoc.Set("missions", missionsMap)
			}
			if ms.Remove {
				if entry := missionsMap.Get(ms.Mission); entry != nil && entry.Kind == document.KindStruct {
					removeField(entry, "status")
				}
				continue
			}
			entry := missionsMap.Get(ms.Mission)
			if entry == nil || entry.Kind != document.KindStruct {
				entry = document.Struct()
				missionsMap.Set(ms.Mission, entry)
			}
			entry.Set("status", document.String(ms.Status))
		}
	}
	return nil
}

func applyUnlockables(doc *document.Document, edits *editstate.EditState) {
	if len(edits.UnlockablesSet) == 0 {
		return
	}
	root := doc.Get("unlockables")
	if root == nil || root.Kind != document.KindStruct {
		root = document.Struct()
		doc.Set("unlockables", root)
	}
	for category, values := range edits.UnlockablesSet {
		seen := map[string]bool{}
		var out []string
		for _, v := range values {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
		sort.Sort(natural.StringSlice(out))

		catDoc := root.Get(category)
		if catDoc == nil || catDoc.Kind != document.KindStruct {
			catDoc = document.Struct()
			root.Set(category, catDoc)
		}
		if len(out) == 0 {
			removeField(catDoc, "entries")
			continue
		}
		items := make([]*document.Document, len(out))
		for i, v := range out {
			items[i] = document.String(v)
		}
		catDoc.Set("entries", document.List(items...))
	}
}
