package light

// MaxDirectionalLights is the maximum number of directional lights the mesh shaders
// size their light arrays for. Every pipeline that includes the shared view bindings,
// the mask pipeline included, must be compiled with the same value so the bind group
// layouts agree.
const MaxDirectionalLights = 10

// MaxCascadesPerLight is the maximum number of shadow cascades per directional light.
const MaxCascadesPerLight = 4
