package packets

import (
	"github.com/cilium/ebpf/asm"

	"github.com/srodi/netpulse-bpf/pkg/types"
)

// lenFieldOffset is where net_dev_xmit and netif_receive_skb both place their
// `len` field: after the 8 byte common header and the skbaddr pointer.
const lenFieldOffset = 16

// packetProgram emits one record per packet into the ring buffer referenced
// by eventsFD. bpf_ringbuf_output fails when the buffer is full and the record
// is dropped in kernel context.
func packetProgram(eventsFD int, dir types.Direction) asm.Instructions {
	const rec = int16(-recordSize)

	return asm.Instructions{
		asm.Mov.Reg(asm.R6, asm.R1),

		asm.StoreImm(asm.RFP, rec, 0, asm.DWord),
		asm.StoreImm(asm.RFP, rec+8, 0, asm.DWord),
		asm.StoreImm(asm.RFP, rec+16, 0, asm.DWord),
		asm.StoreImm(asm.RFP, rec+24, 0, asm.DWord),
		asm.StoreImm(asm.RFP, rec+32, 0, asm.DWord),

		asm.FnKtimeGetNs.Call(),
		asm.StoreMem(asm.RFP, rec+offTimestamp, asm.R0, asm.DWord),

		asm.FnGetCurrentPidTgid.Call(),
		asm.RSh.Imm(asm.R0, 32),
		asm.StoreMem(asm.RFP, rec+offPID, asm.R0, asm.Word),

		asm.LoadMem(asm.R1, asm.R6, lenFieldOffset, asm.Word),
		asm.StoreMem(asm.RFP, rec+offBytes, asm.R1, asm.DWord),

		asm.StoreImm(asm.RFP, rec+offDirection, int64(dir), asm.Byte),

		asm.Mov.Reg(asm.R1, asm.RFP),
		asm.Add.Imm(asm.R1, int32(rec+offComm)),
		asm.Mov.Imm(asm.R2, types.CommLen),
		asm.FnGetCurrentComm.Call(),

		asm.LoadMapPtr(asm.R1, eventsFD),
		asm.Mov.Reg(asm.R2, asm.RFP),
		asm.Add.Imm(asm.R2, int32(rec)),
		asm.Mov.Imm(asm.R3, recordSize),
		asm.Mov.Imm(asm.R4, 0),
		asm.FnRingbufOutput.Call(),

		asm.Mov.Imm(asm.R0, 0),
		asm.Return(),
	}
}
