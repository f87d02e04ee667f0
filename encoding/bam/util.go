package bam

import (
	"fmt"

	"github.com/grailbio/hts/sam"
)

// IsPaired returns true if the record is part of a pair.
func IsPaired(record *sam.Record) bool { return record.Flags&sam.Paired != 0 }

// IsProperPair returns true if both mates are mapped in a proper pair.
func IsProperPair(record *sam.Record) bool { return record.Flags&sam.ProperPair != 0 }

// IsUnmapped returns true if the record is unmapped.
func IsUnmapped(record *sam.Record) bool { return record.Flags&sam.Unmapped != 0 }

// IsMateUnmapped returns true if the mate is unmapped.
func IsMateUnmapped(record *sam.Record) bool { return record.Flags&sam.MateUnmapped != 0 }

// IsReverse returns true if the read is reverse complemented.
func IsReverse(record *sam.Record) bool { return record.Flags&sam.Reverse != 0 }

// IsMateReverse returns true if the mate is reverse complemented.
func IsMateReverse(record *sam.Record) bool { return record.Flags&sam.MateReverse != 0 }

// IsRead1 returns true if the record is the first read of a pair.
func IsRead1(record *sam.Record) bool { return record.Flags&sam.Read1 != 0 }

// IsRead2 returns true if the record is the second read of a pair.
func IsRead2(record *sam.Record) bool { return record.Flags&sam.Read2 != 0 }

// IsSecondary returns true if the record is a secondary alignment.
func IsSecondary(record *sam.Record) bool { return record.Flags&sam.Secondary != 0 }

// IsQCFail returns true if the record failed vendor QC.
func IsQCFail(record *sam.Record) bool { return record.Flags&sam.QCFail != 0 }

// IsDuplicate returns true if the record is marked as a duplicate.
func IsDuplicate(record *sam.Record) bool { return record.Flags&sam.Duplicate != 0 }

// IsSupplementary returns true if the record is a supplementary alignment.
func IsSupplementary(record *sam.Record) bool { return record.Flags&sam.Supplementary != 0 }

// PairOrder identifies the position of a read within its template.
type PairOrder uint8

const (
	// Unpaired is a fragment read.
	Unpaired PairOrder = iota
	// FirstOfPair is read 1 of a pair.
	FirstOfPair
	// SecondOfPair is read 2 of a pair.
	SecondOfPair
)

// GetPairOrder returns the pairing order of the record.
func GetPairOrder(record *sam.Record) PairOrder {
	switch {
	case !IsPaired(record):
		return Unpaired
	case IsRead1(record):
		return FirstOfPair
	case IsRead2(record):
		return SecondOfPair
	}
	return Unpaired
}

// IntTag returns the value of an integer aux field. ok is false if the tag is
// absent or does not hold an integer.
func IntTag(record *sam.Record, tag sam.Tag) (v int, ok bool) {
	aux := record.AuxFields.Get(tag)
	if aux == nil {
		return 0, false
	}
	switch x := aux.Value().(type) {
	case int8:
		return int(x), true
	case uint8:
		return int(x), true
	case int16:
		return int(x), true
	case uint16:
		return int(x), true
	case int32:
		return int(x), true
	case uint32:
		return int(x), true
	case int:
		return x, true
	}
	return 0, false
}

// StringTag returns the value of a 'Z' aux field, or "" if absent.
func StringTag(record *sam.Record, tag sam.Tag) (string, bool) {
	aux := record.AuxFields.Get(tag)
	if aux == nil {
		return "", false
	}
	s, ok := aux.Value().(string)
	return s, ok
}

// CharTag returns the value of an 'A' aux field.
func CharTag(record *sam.Record, tag sam.Tag) (byte, bool) {
	aux := record.AuxFields.Get(tag)
	if aux == nil {
		return 0, false
	}
	switch x := aux.Value().(type) {
	case byte:
		return x, true
	case sam.ASCII:
		return byte(x), true
	}
	return 0, false
}

// ClearTag removes every aux field with the given tag.
func ClearTag(record *sam.Record, tag sam.Tag) {
	fields := record.AuxFields[:0]
	for _, aux := range record.AuxFields {
		if aux.Tag() != tag {
			fields = append(fields, aux)
		}
	}
	record.AuxFields = fields
}

// SetIntTag replaces any existing value of the tag with v.
func SetIntTag(record *sam.Record, tag sam.Tag, v int) error {
	ClearTag(record, tag)
	aux, err := sam.NewAux(tag, v)
	if err != nil {
		return fmt.Errorf("bam.SetIntTag %s=%d: %v", tag, v, err)
	}
	record.AuxFields = append(record.AuxFields, aux)
	return nil
}
