package photo

import (
	"bytes"
	"encoding/binary"
)

// TIFF field types
const (
	tiffASCII    = 2
	tiffShort    = 3
	tiffLong     = 4
	tiffRational = 5
)

type tiffEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

// exifFixture describes the tags written by buildExifTIFF. Zero values are omitted.
type exifFixture struct {
	orientation      uint16
	dateTimeOriginal string
	lat, long        [][2]uint32
	latRef, longRef  string
}

// buildExifTIFF encodes a little-endian TIFF holding IFD0, an Exif IFD and a
// GPS IFD, which goexif decodes the same way as an APP1 segment.
func buildExifTIFF(f exifFixture) []byte {
	var exifEntries, gpsEntries []tiffEntry
	if f.dateTimeOriginal != "" {
		exifEntries = append(exifEntries, asciiEntry(0x9003, f.dateTimeOriginal))
	}
	if f.latRef != "" {
		gpsEntries = append(gpsEntries, asciiEntry(0x0001, f.latRef))
	}
	if len(f.lat) > 0 {
		gpsEntries = append(gpsEntries, rationalEntry(0x0002, f.lat))
	}
	if f.longRef != "" {
		gpsEntries = append(gpsEntries, asciiEntry(0x0003, f.longRef))
	}
	if len(f.long) > 0 {
		gpsEntries = append(gpsEntries, rationalEntry(0x0004, f.long))
	}

	var ifd0 []tiffEntry
	if f.orientation != 0 {
		ifd0 = append(ifd0, tiffEntry{tag: 0x0112, typ: tiffShort, count: 1, data: le16(f.orientation)})
	}
	exifPtr, gpsPtr := -1, -1
	if len(exifEntries) > 0 {
		exifPtr = len(ifd0)
		ifd0 = append(ifd0, tiffEntry{tag: 0x8769, typ: tiffLong, count: 1, data: le32(0)})
	}
	if len(gpsEntries) > 0 {
		gpsPtr = len(ifd0)
		ifd0 = append(ifd0, tiffEntry{tag: 0x8825, typ: tiffLong, count: 1, data: le32(0)})
	}

	off0 := uint32(8)
	offExif := off0 + ifdLen(ifd0)
	offGPS := offExif + ifdLen(exifEntries)
	if exifPtr >= 0 {
		ifd0[exifPtr].data = le32(offExif)
	}
	if gpsPtr >= 0 {
		ifd0[gpsPtr].data = le32(offGPS)
	}

	var buf bytes.Buffer
	buf.WriteString("II")
	buf.Write(le16(42))
	buf.Write(le32(off0))
	buf.Write(encodeIFD(off0, ifd0))
	if len(exifEntries) > 0 {
		buf.Write(encodeIFD(offExif, exifEntries))
	}
	if len(gpsEntries) > 0 {
		buf.Write(encodeIFD(offGPS, gpsEntries))
	}
	return buf.Bytes()
}

func asciiEntry(tag uint16, s string) tiffEntry {
	data := append([]byte(s), 0)
	return tiffEntry{tag: tag, typ: tiffASCII, count: uint32(len(data)), data: data}
}

func rationalEntry(tag uint16, vals [][2]uint32) tiffEntry {
	var data []byte
	for _, v := range vals {
		data = append(data, le32(v[0])...)
		data = append(data, le32(v[1])...)
	}
	return tiffEntry{tag: tag, typ: tiffRational, count: uint32(len(vals)), data: data}
}

func ifdLen(entries []tiffEntry) uint32 {
	if len(entries) == 0 {
		return 0
	}
	n := uint32(2 + 12*len(entries) + 4)
	for _, e := range entries {
		if len(e.data) > 4 {
			n += uint32(len(e.data))
		}
	}
	return n
}

func encodeIFD(start uint32, entries []tiffEntry) []byte {
	var buf, overflow bytes.Buffer
	extra := start + uint32(2+12*len(entries)+4)

	buf.Write(le16(uint16(len(entries))))
	for _, e := range entries {
		buf.Write(le16(e.tag))
		buf.Write(le16(e.typ))
		buf.Write(le32(e.count))
		if len(e.data) <= 4 {
			val := make([]byte, 4)
			copy(val, e.data)
			buf.Write(val)
			continue
		}
		buf.Write(le32(extra + uint32(overflow.Len())))
		overflow.Write(e.data)
	}
	buf.Write(le32(0))
	buf.Write(overflow.Bytes())
	return buf.Bytes()
}

func le16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}
