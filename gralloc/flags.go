package gralloc

import "github.com/vkngwrapper/gralloc/gralloc/internal/utils"

// Usage describes how a buffer will be used by its consumers. The allocator uses it to choose
// the memory a buffer is placed in.
type Usage uint32

var usageMapping = utils.NewFlagStringMapping[Usage]()

func (u Usage) Register(str string) {
	usageMapping.Register(u, str)
}
func (u Usage) String() string {
	return usageMapping.FlagsToString(u)
}

const (
	// UsageHWTexture indicates the buffer will be sampled by the GPU. Texture buffers are placed
	// in the main pool.
	UsageHWTexture Usage = 0x00000100
	// UsageHWRender indicates the buffer will be rendered to by the GPU. Render buffers are placed
	// in the pool of the allocator's device context.
	UsageHWRender Usage = 0x00000200
	// UsageHW2D indicates the buffer will be used by the 2D blitter. It is a hard requirement: a
	// 2D buffer is never silently moved to anonymous shared memory when its pool is unavailable.
	UsageHW2D Usage = 0x00000400
	// UsageHWFramebuffer requests a slot of the display surface
	UsageHWFramebuffer Usage = 0x00001000
)

func init() {
	UsageHWTexture.Register("UsageHWTexture")
	UsageHWRender.Register("UsageHWRender")
	UsageHW2D.Register("UsageHW2D")
	UsageHWFramebuffer.Register("UsageHWFramebuffer")
}

// HandleFlags records where the memory behind a Handle came from
type HandleFlags int32

var handleFlagsMapping = utils.NewFlagStringMapping[HandleFlags]()

func (f HandleFlags) Register(str string) {
	handleFlagsMapping.Register(f, str)
}
func (f HandleFlags) String() string {
	return handleFlagsMapping.FlagsToString(f)
}

const (
	// HandleFlagFramebuffer marks a handle that owns a framebuffer ring slot
	HandleFlagFramebuffer HandleFlags = 1 << iota
	// HandleFlagUsesPmem marks a handle backed by pinned physical memory, either a pool or the
	// display surface
	HandleFlagUsesPmem
)

func init() {
	HandleFlagFramebuffer.Register("HandleFlagFramebuffer")
	HandleFlagUsesPmem.Register("HandleFlagUsesPmem")
}
