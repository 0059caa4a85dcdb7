package engine

// CollisionFlags are the native collision object flags.
type CollisionFlags int

const (
	CFStaticObject                  CollisionFlags = 1
	CFKinematicObject               CollisionFlags = 2
	CFNoContactResponse             CollisionFlags = 4
	CFCustomMaterialCallback        CollisionFlags = 8
	CFCharacterObject               CollisionFlags = 16
	CFDisableVisualizeObject        CollisionFlags = 32
	CFDisableSPUCollisionProcessing CollisionFlags = 64
)

// Has reports whether all bits of flag are set.
func (f CollisionFlags) Has(flag CollisionFlags) bool {
	return f&flag == flag
}

// ActivationState is a body's sleep/wake mode.
type ActivationState int

const (
	ActiveTag           ActivationState = 1
	IslandSleeping      ActivationState = 2
	WantsDeactivation   ActivationState = 3
	DisableDeactivation ActivationState = 4
	DisableSimulation   ActivationState = 5
)

func (s ActivationState) String() string {
	switch s {
	case ActiveTag:
		return "active"
	case IslandSleeping:
		return "sleeping"
	case WantsDeactivation:
		return "wants-deactivation"
	case DisableDeactivation:
		return "always-active"
	case DisableSimulation:
		return "simulation-disabled"
	default:
		return "unknown"
	}
}

// CollisionGroup is a collision filter bit.
type CollisionGroup int

const (
	GroupDefault1 CollisionGroup = 1 << iota
	GroupDefault2
	GroupTerrain
	GroupTree
	GroupBuilding
	GroupVehicle
	GroupDynamic1
	GroupDynamic2
	GroupCamera

	GroupAll CollisionGroup = -1
)

// CollisionFilter pairs a group with the mask of groups it collides with.
type CollisionFilter struct {
	Group CollisionGroup
	Mask  CollisionGroup
}

// Accepts reports whether two filters allow a contact pair.
func (f CollisionFilter) Accepts(other CollisionFilter) bool {
	return f.Group&other.Mask != 0 && other.Group&f.Mask != 0
}
