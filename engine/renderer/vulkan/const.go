package vulkan

// DEFAULT_MAX_FRAMES_IN_FLIGHT is used when the configuration leaves the
// frames in flight count unset.
const DEFAULT_MAX_FRAMES_IN_FLIGHT uint8 = 2

// ENGINE_NAME is reported to the driver in the application info.
const ENGINE_NAME = "Koala Engine"

const VALIDATION_LAYER_NAME = "VK_LAYER_KHRONOS_validation"
