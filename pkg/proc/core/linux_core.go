package core

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-delve/lpdbg/pkg/logflags"
	"github.com/go-delve/lpdbg/pkg/proc"
)

// NT_FILE is file mapping information, e.g. program text mappings. Desc is a LinuxNTFile.
const _NT_FILE elf.NType = 0x46494c45 // "FILE".

// NT_AUXV is the note type for notes containing a copy of the Auxv array
const _NT_AUXV elf.NType = 0x6

// _AT_ENTRY is the auxiliary vector entry holding the entry point the
// program was started at.
const _AT_ENTRY = 9

const elfErrorBadMagicNumber = "bad magic number"

// readLinuxCore reads a core file from corePath corresponding to the executable at
// exePath. For details on the Linux ELF core format, see:
// http://www.gabriel.urdhr.fr/2015/05/29/core-file/,
// http://uhlo.blogspot.fr/2012/05/brief-look-into-core-dumps.html,
// elf_core_dump in http://lxr.free-electrons.com/source/fs/binfmt_elf.c,
// and, if absolutely desperate, readelf.c from the binutils source.
func readLinuxCore(corePath, exePath string) (*proc.Target, error) {
	coreFh, err := os.Open(corePath)
	if err != nil {
		return nil, err
	}
	coreFile, err := elf.NewFile(coreFh)
	if err != nil {
		coreFh.Close()
		if _, isfmterr := err.(*elf.FormatError); isfmterr && (strings.Contains(err.Error(), elfErrorBadMagicNumber) || strings.Contains(err.Error(), " at offset 0x0: too short")) {
			return nil, ErrUnrecognizedFormat
		}
		return nil, err
	}
	if coreFile.Type != elf.ET_CORE {
		coreFh.Close()
		return nil, fmt.Errorf("%s is not a core file", corePath)
	}

	bi := proc.NewBinaryInfo()
	if err := bi.LoadBinaryInfo(exePath); err != nil {
		coreFh.Close()
		return nil, err
	}
	exe, err := elf.Open(exePath)
	if err != nil {
		coreFh.Close()
		bi.Close()
		return nil, err
	}
	if exe.Type != elf.ET_EXEC && exe.Type != elf.ET_DYN {
		coreFh.Close()
		exe.Close()
		bi.Close()
		return nil, fmt.Errorf("%s is not an executable", exePath)
	}
	if exe.Machine != coreFile.Machine {
		coreFh.Close()
		exe.Close()
		bi.Close()
		return nil, fmt.Errorf("core file machine %v does not match executable machine %v", coreFile.Machine, exe.Machine)
	}

	notes, err := readNotes(coreFile)
	if err != nil {
		coreFh.Close()
		exe.Close()
		bi.Close()
		return nil, err
	}
	bi.SetStaticBaseFromEntry(findEntryPoint(notes, bi.PtrSize))
	memory := buildMemory(coreFile, exe, bi.StaticBase, notes)

	t := proc.NewTarget(bi, memory, coreFh, exe)
	t.Pid = findPid(notes)
	t.CorePath = corePath
	if logflags.Core() {
		logflags.CoreLogger().Debugf("opened core %s of pid %d, %d regions, static base %#x", corePath, t.Pid, len(memory.readers), bi.StaticBase)
	}
	return t, nil
}

// Note is a note from the PT_NOTE prog.
// Relevant types:
// - NT_FILE: File mapping information, e.g. program text mappings. Desc is a LinuxNTFile.
// - NT_PRPSINFO: Information about a process, including PID and signal. Desc is a LinuxPrPsInfo.
// - NT_AUXV: the auxiliary vector of the process, Desc is a []byte.
type note struct {
	Type elf.NType
	Name string
	Desc interface{} // Decoded Desc from the
}

// readNotes reads all the notes from the notes prog in core.
func readNotes(core *elf.File) ([]*note, error) {
	var notesProg *elf.Prog
	for _, prog := range core.Progs {
		if prog.Type == elf.PT_NOTE {
			notesProg = prog
			break
		}
	}
	if notesProg == nil {
		return nil, nil
	}

	r := notesProg.Open()
	notes := []*note{}
	for {
		note, err := readNote(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}

	return notes, nil
}

// readNote reads a single note from r, decoding the descriptor if possible.
func readNote(r io.ReadSeeker) (*note, error) {
	// Notes are laid out as described in the SysV ABI:
	// http://www.sco.com/developers/gabi/latest/ch5.pheader.html#note_section
	note := &note{}
	hdr := &elfNotesHdr{}

	err := binary.Read(r, binary.LittleEndian, hdr)
	if err != nil {
		return nil, err // don't wrap so readNotes sees EOF.
	}
	note.Type = elf.NType(hdr.Type)

	name := make([]byte, hdr.Namesz)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, fmt.Errorf("reading name: %v", err)
	}
	note.Name = strings.TrimRight(string(name), "\x00")
	if err := skipPadding(r, 4); err != nil {
		return nil, fmt.Errorf("aligning after name: %v", err)
	}
	desc := make([]byte, hdr.Descsz)
	if _, err := io.ReadFull(r, desc); err != nil {
		return nil, fmt.Errorf("reading desc: %v", err)
	}
	descReader := bytes.NewReader(desc)
	switch note.Type {
	case elf.NT_PRPSINFO:
		note.Desc = &linuxPrPsInfo{}
		if err := binary.Read(descReader, binary.LittleEndian, note.Desc); err != nil {
			return nil, fmt.Errorf("reading NT_PRPSINFO: %v", err)
		}
	case _NT_FILE:
		// No good documentation reference, but the structure is
		// simply a header, including entry count, followed by that
		// many entries, and then the file name of each entry,
		// null-delimited. Not reading the names here.
		data := &linuxNTFile{}
		if err := binary.Read(descReader, binary.LittleEndian, &data.linuxNTFileHdr); err != nil {
			return nil, fmt.Errorf("reading NT_FILE header: %v", err)
		}
		for i := 0; i < int(data.Count); i++ {
			entry := &linuxNTFileEntry{}
			if err := binary.Read(descReader, binary.LittleEndian, entry); err != nil {
				return nil, fmt.Errorf("reading NT_FILE entry %v: %v", i, err)
			}
			data.entries = append(data.entries, entry)
		}
		note.Desc = data
	case _NT_AUXV:
		note.Desc = desc
	}
	if err := skipPadding(r, 4); err != nil {
		return nil, fmt.Errorf("aligning after desc: %v", err)
	}
	return note, nil
}

// skipPadding moves r to the next multiple of pad.
func skipPadding(r io.ReadSeeker, pad int64) error {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if pos%pad == 0 {
		return nil
	}
	if _, err := r.Seek(pad-(pos%pad), io.SeekCurrent); err != nil {
		return err
	}
	return nil
}

func buildMemory(core, exeELF *elf.File, staticBase uint64, notes []*note) *splicedMemory {
	memory := &splicedMemory{}

	// Load memory segments from exe and then from the core file,
	// allowing the corefile to overwrite previously loaded segments
	for _, elfFile := range []*elf.File{exeELF, core} {
		base := uint64(0)
		if elfFile == exeELF {
			base = staticBase
		}
		for _, prog := range elfFile.Progs {
			if prog.Type == elf.PT_LOAD {
				if prog.Filesz == 0 {
					continue
				}
				r := &offsetReaderAt{
					reader: prog.ReaderAt,
					offset: prog.Vaddr + base,
				}
				memory.Add(r, prog.Vaddr+base, prog.Filesz)
			}
		}
	}
	if logflags.Core() {
		for _, note := range notes {
			if note.Type == _NT_FILE {
				logflags.CoreLogger().Debugf("%d file mappings not backed by the core file are ignored", len(note.Desc.(*linuxNTFile).entries))
			}
		}
	}
	return memory
}

func findEntryPoint(notes []*note, ptrSize int) uint64 {
	for _, note := range notes {
		if note.Type == _NT_AUXV {
			return entryPointFromAuxv(note.Desc.([]byte), ptrSize)
		}
	}
	return 0
}

// entryPointFromAuxv returns the AT_ENTRY value of the auxiliary vector
// auxv, a list of (tag, value) pairs of pointer sized words.
func entryPointFromAuxv(auxv []byte, ptrSize int) uint64 {
	rd := bytes.NewReader(auxv)
	readWord := func() (uint64, bool) {
		if ptrSize == 4 {
			var n uint32
			if err := binary.Read(rd, binary.LittleEndian, &n); err != nil {
				return 0, false
			}
			return uint64(n), true
		}
		var n uint64
		if err := binary.Read(rd, binary.LittleEndian, &n); err != nil {
			return 0, false
		}
		return n, true
	}
	for {
		tag, ok := readWord()
		if !ok {
			return 0
		}
		val, ok := readWord()
		if !ok {
			return 0
		}
		if tag == _AT_ENTRY {
			return val
		}
	}
}

func findPid(notes []*note) int {
	for _, note := range notes {
		if note.Type == elf.NT_PRPSINFO {
			return int(note.Desc.(*linuxPrPsInfo).Pid)
		}
	}
	return 0
}

// LinuxPrPsInfo has various structures from the ELF spec and the Linux kernel.
// See http://lxr.free-electrons.com/source/include/uapi/linux/elfcore.h
type linuxPrPsInfo struct {
	State                uint8
	Sname                int8
	Zomb                 uint8
	Nice                 int8
	_                    [4]uint8
	Flag                 uint64
	Uid, Gid             uint32
	Pid, Ppid, Pgrp, Sid int32
	Fname                [16]uint8
	Args                 [80]uint8
}

// LinuxNTFile contains information on mapped files.
type linuxNTFile struct {
	linuxNTFileHdr
	entries []*linuxNTFileEntry
}

// LinuxNTFileHdr is a header struct for NTFile.
type linuxNTFileHdr struct {
	Count    uint64
	PageSize uint64
}

// LinuxNTFileEntry is an entry of an NT_FILE note.
type linuxNTFileEntry struct {
	Start   uint64
	End     uint64
	FileOfs uint64
}

// elfNotesHdr is the ELF Notes header.
// Same size on 64 and 32-bit machines.
type elfNotesHdr struct {
	Namesz uint32
	Descsz uint32
	Type   uint32
}
