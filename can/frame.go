package can

import "github.com/alcp-iot/hapcanbridge/hapcan"

// rawSize is sizeof(struct can_frame) on Linux when only the first 8
// payload bytes are used (can_id uint32, can_dlc uint8 + 3 bytes
// padding, data[8]) - 16 bytes total, the kernel's wire layout for a
// classic (non-FD) CAN frame.
const rawSize = 16

// Flag bits from linux/can.h, used to classify a raw frame without
// pulling in a cgo header.
const (
	canEFFFlag = 0x80000000 // extended frame format
	canRTRFlag = 0x40000000 // remote transmission request
	canErrFlag = 0x20000000 // error frame
	canSFFMask = 0x000007FF
	canEFFMask = 0x1FFFFFFF
)

// encodeRaw serializes a hapcan.Frame into the kernel's struct can_frame
// wire layout for a raw SocketCAN write.
func encodeRaw(f hapcan.Frame) []byte {
	buf := make([]byte, rawSize)
	id := f.ID & canEFFMask
	if f.Extended {
		id |= canEFFFlag
	}
	putUint32LE(buf[0:4], id)
	buf[4] = byte(len(f.Data))
	copy(buf[8:], f.Data)
	return buf
}

// decodeRaw parses a kernel struct can_frame buffer (exactly rawSize
// bytes, as delivered by a single raw-socket read) into a hapcan.Frame.
func decodeRaw(buf []byte) hapcan.Frame {
	raw := getUint32LE(buf[0:4])
	dlc := int(buf[4])
	if dlc > 8 {
		dlc = 8
	}
	f := hapcan.Frame{
		ErrorFlag: raw&canErrFlag != 0,
		Extended:  raw&canEFFFlag != 0,
	}
	if f.Extended {
		f.ID = raw & canEFFMask
	} else {
		f.ID = raw & canSFFMask
	}
	f.Data = append([]byte(nil), buf[8:8+dlc]...)
	return f
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getUint32LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
