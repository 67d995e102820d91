package forward

import (
	"fmt"

	"github.com/chazu/lambdastring/asm"
)

// SyntheticBlock describes one guarded region built by TryCatch. The three
// markers are runtime labels held in local slots of the emitted code.
type SyntheticBlock struct {
	StartSlot     int
	EndSlot       int
	HandlerSlot   int
	ExceptionType string
}

// BlockBody emits forwarded instructions for one part of a structured block.
type BlockBody func(e *Emitter) error

// TryCatch emits code that, when executed, builds a try/catch region in the
// visitor handle's method:
//
//	visitTryCatchBlock(start, end, handler, excType)
//	visitLabel(start)   try
//	visitLabel(end)     endTry
//	visitLabel(handler) visitFrame(F_SAME1, 0, null, 1, [excType])   catch
//
// The bodies run against this emitter, so they may nest further blocks. An
// empty excType builds a catch-all region whose handler frame holds a
// Throwable. Nil bodies emit nothing.
func (e *Emitter) TryCatch(try, endTry, catch BlockBody, excType string) error {
	blk := e.openBlock(excType)
	defer e.closeBlock()

	for _, slot := range []int{blk.StartSlot, blk.EndSlot, blk.HandlerSlot} {
		if err := e.newLabel(slot); err != nil {
			return err
		}
	}

	err := e.forward("visitTryCatchBlock", e.sig.tryCatchBlock,
		e.loadArg(blk.StartSlot), e.loadArg(blk.EndSlot), e.loadArg(blk.HandlerSlot),
		func() error {
			if excType == "" {
				return e.pushNull()
			}
			return e.pushString(excType)
		})
	if err != nil {
		return err
	}

	if err := e.placeLabel(blk.StartSlot); err != nil {
		return err
	}
	if err := runBody(e, try, "try"); err != nil {
		return err
	}
	if err := e.placeLabel(blk.EndSlot); err != nil {
		return err
	}
	if err := runBody(e, endTry, "end of try"); err != nil {
		return err
	}
	if err := e.placeLabel(blk.HandlerSlot); err != nil {
		return err
	}

	handlerType := excType
	if handlerType == "" {
		handlerType = "java/lang/Throwable"
	}
	if err := e.Emit(Frame{Type: asm.F_SAME1, NLocal: 0, NStack: 1, Stack: []Operand{String(handlerType)}}); err != nil {
		return err
	}
	return runBody(e, catch, "catch")
}

func runBody(e *Emitter, body BlockBody, part string) error {
	if body == nil {
		return nil
	}
	if err := body(e); err != nil {
		return fmt.Errorf("%s body: %w", part, err)
	}
	return nil
}

// openBlock reserves three label slots above those of any enclosing block.
func (e *Emitter) openBlock(excType string) SyntheticBlock {
	base := e.labelBase + 3*e.depth
	e.depth++
	return SyntheticBlock{
		StartSlot:     base,
		EndSlot:       base + 1,
		HandlerSlot:   base + 2,
		ExceptionType: excType,
	}
}

func (e *Emitter) closeBlock() {
	e.depth--
}

// newLabel stores a fresh Label instance in slot.
func (e *Emitter) newLabel(slot int) error {
	if err := e.mv.VisitTypeInsn(asm.NEW, e.sig.label); err != nil {
		return err
	}
	if err := e.dup(); err != nil {
		return err
	}
	if err := e.mv.VisitMethodInsn(asm.INVOKESPECIAL, e.sig.label, "<init>", descNoArgs, false); err != nil {
		return err
	}
	return e.mv.VisitVarInsn(asm.ASTORE, slot)
}

func (e *Emitter) placeLabel(slot int) error {
	return e.forward("visitLabel", e.sig.visitLabel, e.loadArg(slot))
}

func (e *Emitter) loadArg(slot int) func() error {
	return func() error { return e.mv.VisitVarInsn(asm.ALOAD, slot) }
}
