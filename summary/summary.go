// Package summary projects a parsed save Document into a flat, editor-
// friendly SaveSummary snapshot. Derivation is pure and total: a malformed
// or missing subtree yields an absent or defaulted field, never an error.
package summary

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/maruel/natural"

	"vaultcodec/common"
	"vaultcodec/document"
)

// ExperienceEntry is one {type, level, points} progression line.
type ExperienceEntry struct {
	Type   string `yaml:"type"`
	Level  int64  `yaml:"level"`
	Points int64  `yaml:"points"`
}

// PointPools classifies the three well-known progression currencies and
// collects everything else by name.
type PointPools struct {
	CharacterProgress    *int64           `yaml:"character_progress,omitempty"`
	SpecializationTokens *int64           `yaml:"specialization_tokens,omitempty"`
	EchoTokens           *int64           `yaml:"echo_tokens,omitempty"`
	Other                map[string]int64 `yaml:"other,omitempty"`
}

// SDULevels is the per-family storage-deposit-unit tier snapshot.
type SDULevels struct {
	Backpack     int32 `yaml:"backpack"`
	Pistol       int32 `yaml:"pistol"`
	SMG          int32 `yaml:"smg"`
	AssaultRifle int32 `yaml:"assault_rifle"`
	Shotgun      int32 `yaml:"shotgun"`
	Sniper       int32 `yaml:"sniper"`
	Heavy        int32 `yaml:"heavy"`
	Grenade      int32 `yaml:"grenade"`
	Bank         int32 `yaml:"bank"`
	LostLoot     int32 `yaml:"lost_loot"`
}

// SkillNode is one node of a skill/SDU graph.
type SkillNode struct {
	Name            string `yaml:"name"`
	PointsSpent     *int64 `yaml:"points_spent,omitempty"`
	ActivationLevel *int64 `yaml:"activation_level,omitempty"`
	IsActivated     *bool  `yaml:"is_activated,omitempty"`
}

// SkillTree is a named graph of nodes, either the SDU graph (projected into
// SDULevels separately) or any other progression tree, returned verbatim.
type SkillTree struct {
	Name         string      `yaml:"name"`
	GroupDefName string      `yaml:"group_def_name,omitempty"`
	Nodes        []SkillNode `yaml:"nodes,omitempty"`
}

// MissionStatus is one (set, mission) pair's status line.
type MissionStatus struct {
	Set     string `yaml:"set"`
	Mission string `yaml:"mission"`
	Status  string `yaml:"status"`
}

// InventoryItem is one backpack slot entry.
type InventoryItem struct {
	Slot       string  `yaml:"slot"`
	Serial     string  `yaml:"serial"`
	StateFlags *string `yaml:"state_flags,omitempty"`
}

// Cosmetics holds the cosmetic slot values parsed out of actor-parts lists.
type Cosmetics struct {
	Body           string `yaml:"body,omitempty"`
	Head           string `yaml:"head,omitempty"`
	Skin           string `yaml:"skin,omitempty"`
	PrimaryColor   string `yaml:"primary_color,omitempty"`
	SecondaryColor string `yaml:"secondary_color,omitempty"`
	TertiaryColor  string `yaml:"tertiary_color,omitempty"`
	EchoBody       string `yaml:"echo_body,omitempty"`
	EchoAttachment string `yaml:"echo_attachment,omitempty"`
	EchoSkin       string `yaml:"echo_skin,omitempty"`
	VehicleSkin    string `yaml:"vehicle_skin,omitempty"`
}

// VehicleLoadout holds vehicle-related actor-parts values.
type VehicleLoadout struct {
	PersonalVehicle   string `yaml:"personal_vehicle,omitempty"`
	HoverDrive        string `yaml:"hover_drive,omitempty"`
	VehicleWeaponSlot string `yaml:"vehicle_weapon_slot,omitempty"`
	VehicleCosmetic   string `yaml:"vehicle_cosmetic,omitempty"`
}

// SaveSummary is the flat, editor-friendly projection of a save Document.
type SaveSummary struct {
	FileName string `yaml:"file_name"`

	CharGUID            string `yaml:"char_guid"`
	CharGUIDIsValidUUID bool   `yaml:"char_guid_is_valid_uuid"`
	Class               string `yaml:"class"`
	CharName            string `yaml:"char_name"`
	PlayerDifficulty    string `yaml:"player_difficulty"`

	CharacterLevel       *int64 `yaml:"character_level,omitempty"`
	CharacterExperience  *int64 `yaml:"character_experience,omitempty"`
	SpecializationLevel  *int64 `yaml:"specialization_level,omitempty"`
	SpecializationPoints *int64 `yaml:"specialization_points,omitempty"`

	Experience []ExperienceEntry `yaml:"experience,omitempty"`
	PointPools PointPools        `yaml:"point_pools"`
	SDULevels  SDULevels         `yaml:"sdu_levels"`
	SkillTrees []SkillTree       `yaml:"skill_trees,omitempty"`

	TrackedMissions         []string        `yaml:"tracked_missions,omitempty"`
	TrackedMissionsNeedNone bool            `yaml:"tracked_missions_need_none"`
	Missions                []MissionStatus `yaml:"missions,omitempty"`
	ActiveMissions          []MissionStatus `yaml:"active_missions,omitempty"`

	Currencies map[string]int64 `yaml:"currencies,omitempty"`
	Ammo       map[string]int32 `yaml:"ammo,omitempty"`

	Inventory          []InventoryItem `yaml:"inventory,omitempty"`
	EquipSlotsUnlocked []int32         `yaml:"equip_slots_unlocked,omitempty"`
	UniqueRewards      []string        `yaml:"unique_rewards,omitempty"`

	Cosmetics      Cosmetics      `yaml:"cosmetics"`
	VehicleLoadout VehicleLoadout `yaml:"vehicle_loadout"`

	Unlockables map[string][]string `yaml:"unlockables,omitempty"`

	ProgressionInState bool `yaml:"progression_in_state"`
	MissionsInState    bool `yaml:"missions_in_state"`
}

// Derive projects doc into a SaveSummary. path is used only to derive
// FileName; it need not point at an existing file.
func Derive(path string, doc *document.Document) *SaveSummary {
	s := &SaveSummary{
		FileName:   deriveFileName(path),
		Currencies: map[string]int64{},
		Ammo:       map[string]int32{},
		Unlockables: map[string][]string{},
	}

	state := doc.Get("state")

	deriveCharFields(s, state)
	deriveExperience(s, state)
	deriveCurrenciesAndAmmo(s, state, common.AmmoModeRaw)
	deriveInventory(s, state)
	deriveEquipSlots(s, state)
	deriveActorParts(s, state)
	deriveUniqueRewards(s, state)
	deriveProgression(s, doc, state)
	deriveMissions(s, doc, state)
	deriveUnlockables(s, doc)

	return s
}

func deriveFileName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}

func asString(d *document.Document) (string, bool) {
	if d == nil || d.Kind != document.KindString {
		return "", false
	}
	return d.Str, true
}

func asInt(d *document.Document) (int64, bool) {
	if d == nil {
		return 0, false
	}
	switch d.Kind {
	case document.KindInt:
		return d.Int, true
	case document.KindString:
		v, err := strconv.ParseInt(strings.TrimSpace(d.Str), 10, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	case document.KindFloat:
		return int64(d.Flt), true
	}
	return 0, false
}

func deriveCharFields(s *SaveSummary, state *document.Document) {
	if state == nil {
		return
	}
	if v, ok := asString(state.Get("char_guid")); ok {
		trimmed := strings.TrimSpace(v)
		s.CharGUID = trimmed
		if _, err := uuid.Parse(trimmed); err == nil {
			s.CharGUIDIsValidUUID = true
		}
	}
	if v, ok := asString(state.Get("class")); ok {
		s.Class = v
	}
	if v, ok := asString(state.Get("char_name")); ok {
		s.CharName = v
	}
	if v, ok := asString(state.Get("player_difficulty")); ok {
		s.PlayerDifficulty = v
	}
}

func deriveExperience(s *SaveSummary, state *document.Document) {
	if state == nil {
		return
	}
	exp := state.Get("experience")
	if exp == nil || exp.Kind != document.KindList {
		return
	}
	for _, entry := range exp.List {
		if entry == nil || entry.Kind != document.KindStruct {
			continue
		}
		typ, _ := asString(entry.Get("type"))
		level, _ := asInt(entry.Get("level"))
		points, _ := asInt(entry.Get("points"))
		s.Experience = append(s.Experience, ExperienceEntry{Type: typ, Level: level, Points: points})

		switch strings.ToLower(typ) {
		case "character":
			l, p := level, points
			s.CharacterLevel = &l
			s.CharacterExperience = &p
		case "specialization":
			l, p := level, points
			s.SpecializationLevel = &l
			s.SpecializationPoints = &p
		}
	}
}

func deriveCurrenciesAndAmmo(s *SaveSummary, state *document.Document, mode common.AmmoMode) {
	if state == nil {
		return
	}
	if cur := state.Get("currencies"); cur != nil && cur.Kind == document.KindStruct {
		for _, f := range cur.Fields {
			if v, ok := asInt(f.Value); ok {
				s.Currencies[f.Name] = v
			}
		}
	}
	if ammo := state.Get("ammo"); ammo != nil && ammo.Kind == document.KindStruct {
		for _, f := range ammo.Fields {
			v, ok := asInt(f.Value)
			if !ok {
				continue
			}
			clamped := clampInt32(v)
			if mode == common.AmmoModeTiered {
				clamped = ammoTierValue(clamped)
			}
			s.Ammo[f.Name] = clamped
		}
	}
}

func clampInt32(v int64) int32 {
	if v > 1<<31-1 {
		return 1<<31 - 1
	}
	if v < -(1 << 31) {
		return -(1 << 31)
	}
	return int32(v)
}

// ammoTierValue re-expresses a raw ammo count through the tier table
// (Open Question (b)): the tier index is exposed in place of the raw count.
// deriveCurrenciesAndAmmo applies it only in AmmoModeTiered; Derive always
// passes AmmoModeRaw, so summaries carry raw counts.
func ammoTierValue(raw int32) int32 {
	tiers := []int32{0, 50, 100, 200, 350, 550, 800, 1100}
	for i := len(tiers) - 1; i >= 0; i-- {
		if raw >= tiers[i] {
			return int32(i)
		}
	}
	return 0
}

func deriveInventory(s *SaveSummary, state *document.Document) {
	if state == nil {
		return
	}
	backpack, err := document.At(state, "inventory.items.backpack")
	if err != nil || backpack == nil || backpack.Kind != document.KindStruct {
		return
	}
	for _, f := range backpack.Fields {
		item := f.Value
		if item == nil || item.Kind != document.KindStruct {
			continue
		}
		serial, _ := asString(item.Get("serial"))
		entry := InventoryItem{Slot: f.Name, Serial: serial}
		if sf, ok := asString(item.Get("state_flags")); ok {
			entry.StateFlags = &sf
		}
		s.Inventory = append(s.Inventory, entry)
	}
	sort.Slice(s.Inventory, func(i, j int) bool { return s.Inventory[i].Slot < s.Inventory[j].Slot })
}

func deriveEquipSlots(s *SaveSummary, state *document.Document) {
	if state == nil {
		return
	}
	slots := state.Get("equip_slots_unlocked")
	if slots == nil || slots.Kind != document.KindList {
		return
	}
	seen := map[int32]bool{}
	var out []int32
	for _, item := range slots.List {
		v, ok := asInt(item)
		if !ok {
			continue
		}
		iv := int32(v)
		if !seen[iv] {
			seen[iv] = true
			out = append(out, iv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	s.EquipSlotsUnlocked = out
}

// cosmeticPatterns maps lower-cased substrings to the cosmetics field they
// fill. First hit (by field declaration order below) wins.
var cosmeticPatterns = []struct {
	substr string
	set    func(*Cosmetics, string)
}{
	{"echobody", func(c *Cosmetics, v string) { c.EchoBody = v }},
	{"echoattachment", func(c *Cosmetics, v string) { c.EchoAttachment = v }},
	{"echoskin", func(c *Cosmetics, v string) { c.EchoSkin = v }},
	{"vehicleskin", func(c *Cosmetics, v string) { c.VehicleSkin = v }},
	{"primarycolor", func(c *Cosmetics, v string) { c.PrimaryColor = v }},
	{"secondarycolor", func(c *Cosmetics, v string) { c.SecondaryColor = v }},
	{"tertiarycolor", func(c *Cosmetics, v string) { c.TertiaryColor = v }},
	{"body", func(c *Cosmetics, v string) { c.Body = v }},
	{"head", func(c *Cosmetics, v string) { c.Head = v }},
	{"skin", func(c *Cosmetics, v string) { c.Skin = v }},
}

var vehiclePatterns = []struct {
	substr string
	set    func(*VehicleLoadout, string)
}{
	{"personalvehicle", func(v *VehicleLoadout, s string) { v.PersonalVehicle = s }},
	{"hoverdrive", func(v *VehicleLoadout, s string) { v.HoverDrive = s }},
	{"vehicleweaponslot", func(v *VehicleLoadout, s string) { v.VehicleWeaponSlot = s }},
	{"vehiclecosmetic", func(v *VehicleLoadout, s string) { v.VehicleCosmetic = s }},
}

func deriveActorParts(s *SaveSummary, state *document.Document) {
	if state == nil {
		return
	}
	for _, which := range []string{"character", "echo4", "vehicle"} {
		path, err := document.At(state, "gbxactorparts."+which)
		if err != nil {
			continue
		}
		str, ok := asString(path)
		if !ok {
			continue
		}
		for key, value := range parseActorPartsList(str) {
			lowerKey := strings.ToLower(key)
			lowerVal := strings.ToLower(value)
			for _, p := range cosmeticPatterns {
				if strings.Contains(lowerKey, p.substr) || strings.Contains(lowerVal, p.substr) {
					p.set(&s.Cosmetics, value)
					break
				}
			}
			for _, p := range vehiclePatterns {
				if strings.Contains(lowerKey, p.substr) || strings.Contains(lowerVal, p.substr) {
					p.set(&s.VehicleLoadout, value)
					break
				}
			}
		}
	}
}

// parseActorPartsList parses a comma-separated "Key[Value]" or bare "Key"
// list into an ordered key->value mapping, skipping case-insensitive "gap"
// entries.
func parseActorPartsList(raw string) map[string]string {
	out := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" || strings.EqualFold(part, "gap") {
			continue
		}
		if i := strings.IndexByte(part, '['); i >= 0 && strings.HasSuffix(part, "]") {
			key := part[:i]
			value := part[i+1 : len(part)-1]
			out[key] = value
		} else {
			out[part] = ""
		}
	}
	return out
}

func deriveUniqueRewards(s *SaveSummary, state *document.Document) {
	if state == nil {
		return
	}
	rewards := state.Get("unique_rewards")
	if rewards == nil || rewards.Kind != document.KindList {
		return
	}
	seen := map[string]bool{}
	var out []string
	for _, item := range rewards.List {
		v, ok := asString(item)
		if !ok || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Sort(natural.StringSlice(out))
	s.UniqueRewards = out
}

func deriveProgression(s *SaveSummary, doc, state *document.Document) {
	var prog *document.Document
	if state != nil {
		if p := state.Get("progression"); p != nil {
			prog = p
			s.ProgressionInState = true
		}
	}
	if prog == nil {
		prog = doc.Get("progression")
	}
	if prog == nil || prog.Kind != document.KindStruct {
		return
	}

	pools := prog.Get("point_pools")
	s.PointPools.Other = map[string]int64{}
	if pools != nil && pools.Kind == document.KindStruct {
		for _, f := range pools.Fields {
			v, ok := asInt(f.Value)
			if !ok {
				continue
			}
			switch f.Name {
			case "character_progress":
				vv := v
				s.PointPools.CharacterProgress = &vv
			case "specialization_tokens":
				vv := v
				s.PointPools.SpecializationTokens = &vv
			case "echo_tokens":
				vv := v
				s.PointPools.EchoTokens = &vv
			default:
				s.PointPools.Other[f.Name] = v
			}
		}
	}

	graphs := prog.Get("graphs")
	if graphs == nil || graphs.Kind != document.KindList {
		return
	}
	for _, g := range graphs.List {
		if g == nil || g.Kind != document.KindStruct {
			continue
		}
		name, _ := asString(g.Get("name"))
		tree := SkillTree{Name: name}
		if gdn, ok := asString(g.Get("group_def_name")); ok {
			tree.GroupDefName = gdn
		}
		nodes := g.Get("nodes")
		if nodes != nil && nodes.Kind == document.KindList {
			for _, n := range nodes.List {
				if n == nil || n.Kind != document.KindStruct {
					continue
				}
				nodeName, _ := asString(n.Get("name"))
				node := SkillNode{Name: nodeName}
				if pv, ok := asInt(n.Get("points_spent")); ok {
					node.PointsSpent = &pv
				}
				tree.Nodes = append(tree.Nodes, node)
			}
		}
		if name == "sdu_upgrades" {
			applySDUNodes(&s.SDULevels, tree.Nodes)
		} else {
			s.SkillTrees = append(s.SkillTrees, tree)
		}
	}
}

// sduFamilies maps a node-name prefix to the SDULevels field it updates and
// that family's tier cap, per the rebuild table editapplier writes from.
var sduFamilies = []struct {
	prefix string
	cap    int32
	set    func(*SDULevels, int32)
}{
	{"Ammo_Pistol_", 7, func(l *SDULevels, v int32) { l.Pistol = v }},
	{"Ammo_SMG_", 7, func(l *SDULevels, v int32) { l.SMG = v }},
	{"Ammo_AR_", 7, func(l *SDULevels, v int32) { l.AssaultRifle = v }},
	{"Ammo_SG_", 7, func(l *SDULevels, v int32) { l.Shotgun = v }},
	{"Ammo_SR_", 7, func(l *SDULevels, v int32) { l.Sniper = v }},
	{"Backpack_", 8, func(l *SDULevels, v int32) { l.Backpack = v }},
	{"Bank_", 8, func(l *SDULevels, v int32) { l.Bank = v }},
	{"Lost_Loot_", 8, func(l *SDULevels, v int32) { l.LostLoot = v }},
}

func applySDUNodes(levels *SDULevels, nodes []SkillNode) {
	tiers := map[string]int32{}
	for _, n := range nodes {
		for _, fam := range sduFamilies {
			if strings.HasPrefix(n.Name, fam.prefix) {
				suffix := strings.TrimPrefix(n.Name, fam.prefix)
				tier, err := strconv.Atoi(suffix)
				if err != nil {
					continue
				}
				if int32(tier) > tiers[fam.prefix] {
					tiers[fam.prefix] = int32(tier)
				}
			}
		}
	}
	for _, fam := range sduFamilies {
		fam.set(levels, tiers[fam.prefix])
	}
}

func deriveMissions(s *SaveSummary, doc, state *document.Document) {
	var missions *document.Document
	if state != nil {
		if m := state.Get("missions"); m != nil {
			missions = m
			s.MissionsInState = true
		}
	}
	if missions == nil {
		missions = doc.Get("missions")
	}
	if missions == nil || missions.Kind != document.KindStruct {
		return
	}

	tracked := missions.Get("tracked_missions")
	if tracked != nil {
		if tracked.Kind == document.KindNull {
			s.TrackedMissionsNeedNone = true
		} else if tracked.Kind == document.KindList {
			for _, item := range tracked.List {
				v, ok := asString(item)
				if !ok {
					continue
				}
				if strings.EqualFold(v, "none") {
					s.TrackedMissionsNeedNone = true
					continue
				}
				s.TrackedMissions = append(s.TrackedMissions, v)
			}
		}
	}

	localSets := missions.Get("local_sets")
	if localSets == nil || localSets.Kind != document.KindStruct {
		return
	}
	for _, setField := range localSets.Fields {
		setDoc := setField.Value
		if setDoc == nil || setDoc.Kind != document.KindStruct {
			continue
		}
		missionsMap := setDoc.Get("missions")
		if missionsMap == nil || missionsMap.Kind != document.KindStruct {
			continue
		}
		for _, missionField := range missionsMap.Fields {
			md := missionField.Value
			if md == nil || md.Kind != document.KindStruct {
				continue
			}
			status, _ := asString(md.Get("status"))
			ms := MissionStatus{Set: setField.Name, Mission: missionField.Name, Status: status}
			s.Missions = append(s.Missions, ms)
			if isActiveMissionStatus(status) {
				s.ActiveMissions = append(s.ActiveMissions, ms)
			}
		}
	}
}

var missionNegativeSubstrings = []string{"complete", "finished", "deactivated", "inactive", "none", "empty"}
var missionPositiveSubstrings = []string{"active", "inprogress", "started", "running", "pending"}

// isActiveMissionStatus classifies a mission status string by substring
// match; it's a heuristic over free-form status text, not a closed enum.
func isActiveMissionStatus(status string) bool {
	lower := strings.ToLower(status)
	for _, neg := range missionNegativeSubstrings {
		if strings.Contains(lower, neg) {
			return false
		}
	}
	for _, pos := range missionPositiveSubstrings {
		if strings.Contains(lower, pos) {
			return true
		}
	}
	return false
}

func deriveUnlockables(s *SaveSummary, doc *document.Document) {
	root := doc.Get("unlockables")
	if root == nil || root.Kind != document.KindStruct {
		return
	}
	for _, catField := range root.Fields {
		catDoc := catField.Value
		if catDoc == nil || catDoc.Kind != document.KindStruct {
			continue
		}
		entries := catDoc.Get("entries")
		if entries == nil || entries.Kind != document.KindList {
			continue
		}
		seen := map[string]bool{}
		var out []string
		for _, e := range entries.List {
			v, ok := asString(e)
			if !ok || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
		sort.Sort(natural.StringSlice(out))
		s.Unlockables[catField.Name] = out
	}
}
