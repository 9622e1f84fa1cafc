package renderer

import (
	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/resource"
)

// Denoiser is an optional post-process applied to the composed image before
// it is presented. The image is copied into a host-visible staging buffer in
// the swap-chain format; the denoiser records its work on that buffer and the
// result is copied back. A nil Denoiser skips the whole step.
type Denoiser interface {
	Name() string
	// Setup is called at the start of every swap-chain epoch. Resources
	// created in arena are released when the epoch ends.
	Setup(device gpu.Device, arena *resource.Arena, extent gpu.Extent2D) error
	// Record appends the denoising work on staging to cb.
	Record(cb gpu.CommandBuffer, staging *resource.Buffer, extent gpu.Extent2D) error
}

// stagingSize is the size of a tightly packed 4-byte-per-pixel image.
func stagingSize(extent gpu.Extent2D) uint64 {
	return uint64(extent.Width) * uint64(extent.Height) * 4
}

// recordDenoiser copies output into staging, lets d work on it and copies
// the result back. output is in TransferSrc on entry and on return.
func recordDenoiser(cb gpu.CommandBuffer, d Denoiser, output *resource.Image, staging *resource.Buffer, extent gpu.Extent2D) error {
	cb.CopyImageToBuffer(output.Handle, gpu.ImageLayoutTransferSrc, staging.Handle, extent)
	staging.InsertBarrier(cb, gpu.PipelineStageTransfer, gpu.PipelineStageAllCommands,
		gpu.AccessTransferWrite, gpu.AccessShaderRead|gpu.AccessShaderWrite)

	if err := d.Record(cb, staging, extent); err != nil {
		return err
	}

	staging.InsertBarrier(cb, gpu.PipelineStageAllCommands, gpu.PipelineStageTransfer,
		gpu.AccessShaderWrite, gpu.AccessTransferRead)
	output.InsertBarrier(cb, gpu.AccessTransferRead, gpu.AccessTransferWrite,
		gpu.ImageLayoutTransferSrc, gpu.ImageLayoutTransferDst)
	cb.CopyBufferToImage(staging.Handle, output.Handle, gpu.ImageLayoutTransferDst, extent)
	output.InsertBarrier(cb, gpu.AccessTransferWrite, gpu.AccessTransferRead,
		gpu.ImageLayoutTransferDst, gpu.ImageLayoutTransferSrc)
	return nil
}
