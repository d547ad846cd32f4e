// Package editstate defines the mutable edit request applied on top of a
// decoded save Document. Every field is optional; a nil/zero-value field
// means "leave this alone", while the accompanying dirty flags disambiguate
// "leave alone" from "set to the empty/zero value" where a SaveSummary
// field can't represent emptiness on its own.
package editstate

import "vaultcodec/common"

type ExperienceEdit struct {
	Type   string `yaml:"type"`
	Level  *int64 `yaml:"level,omitempty"`
	Points *int64 `yaml:"points,omitempty"`
}

type PointPoolsEdit struct {
	CharacterProgress    *int64           `yaml:"character_progress,omitempty"`
	SpecializationTokens *int64           `yaml:"specialization_tokens,omitempty"`
	EchoTokens           *int64           `yaml:"echo_tokens,omitempty"`
	Other                map[string]int64 `yaml:"other,omitempty"`
}

type SDULevelsEdit struct {
	Backpack     *int32 `yaml:"backpack,omitempty"`
	Pistol       *int32 `yaml:"pistol,omitempty"`
	SMG          *int32 `yaml:"smg,omitempty"`
	AssaultRifle *int32 `yaml:"assault_rifle,omitempty"`
	Shotgun      *int32 `yaml:"shotgun,omitempty"`
	Sniper       *int32 `yaml:"sniper,omitempty"`
	Bank         *int32 `yaml:"bank,omitempty"`
	LostLoot     *int32 `yaml:"lost_loot,omitempty"`
}

type SkillTreeOverride struct {
	Name         string           `yaml:"name"`
	GroupDefName string           `yaml:"group_def_name,omitempty"`
	Nodes        map[string]int64 `yaml:"nodes,omitempty"` // node name -> points_spent
}

type InventoryEdit struct {
	Slot       string  `yaml:"slot"`
	Serial     string  `yaml:"serial,omitempty"`
	StateFlags *string `yaml:"state_flags,omitempty"`
	Remove     bool    `yaml:"remove,omitempty"`
}

type MissionStatusEdit struct {
	Set     string `yaml:"set"`
	Mission string `yaml:"mission"`
	Status  string `yaml:"status,omitempty"` // ignored when Remove is set
	Remove  bool   `yaml:"remove,omitempty"` // delete the mission's status key
}

// EditState is the full set of edits an editor session may want to apply to
// a single save Document. Fields left at their zero value (nil pointers,
// nil slices/maps) are no-ops; the *_dirty flags below opt a zero value in
// where that distinction matters.
type EditState struct {
	CharGUID         *string `yaml:"char_guid,omitempty"`
	Class            *string `yaml:"class,omitempty"`
	CharName         *string `yaml:"char_name,omitempty"`
	PlayerDifficulty *string `yaml:"player_difficulty,omitempty"`

	Experience []ExperienceEdit `yaml:"experience,omitempty"`

	Currencies map[string]int64     `yaml:"currencies,omitempty"`
	Ammo       map[string]int32     `yaml:"ammo,omitempty"`
	AmmoMode   common.AmmoMode      `yaml:"ammo_mode,omitempty"`

	PointPools         *PointPoolsEdit     `yaml:"point_pools,omitempty"`
	SDULevels          *SDULevelsEdit      `yaml:"sdu_levels,omitempty"`
	SDULevelsDirty     bool                `yaml:"sdu_levels_dirty,omitempty"`
	SkillTreeOverrides []SkillTreeOverride `yaml:"skill_tree_overrides,omitempty"`
	ProgressionInState bool                `yaml:"progression_in_state,omitempty"`

	Inventory          []InventoryEdit `yaml:"inventory,omitempty"`
	EquipSlotsUnlocked []int32         `yaml:"equip_slots_unlocked,omitempty"`

	UniqueRewardsAdd    []string `yaml:"unique_rewards_add,omitempty"`
	UniqueRewardsRemove []string `yaml:"unique_rewards_remove,omitempty"`
	UniqueRewardsDirty  bool     `yaml:"unique_rewards_dirty,omitempty"`

	CosmeticsCharacter map[string]string `yaml:"cosmetics_character,omitempty"`
	CosmeticsEcho      map[string]string `yaml:"cosmetics_echo,omitempty"`
	CosmeticsVehicle   map[string]string `yaml:"cosmetics_vehicle,omitempty"`

	TrackedMissions         []string            `yaml:"tracked_missions,omitempty"`
	TrackedMissionsDirty    bool                `yaml:"tracked_missions_dirty,omitempty"`
	TrackedMissionsNeedNone bool                `yaml:"tracked_missions_need_none,omitempty"`
	MissionStatuses         []MissionStatusEdit `yaml:"mission_statuses,omitempty"`
	MissionsInState         bool                `yaml:"missions_in_state,omitempty"`

	UnlockablesSet map[string][]string `yaml:"unlockables_set,omitempty"`
}
