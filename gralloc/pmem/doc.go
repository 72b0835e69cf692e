// Package pmem binds the gralloc collaborator interfaces to Linux: pinned memory pools are
// /dev/pmem* devices driven through the PMEM ioctls, anonymous shared memory comes from
// memfd_create, and the display surface is an fbdev framebuffer.
package pmem
