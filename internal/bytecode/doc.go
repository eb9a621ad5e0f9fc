// Package bytecode models the inputs of method reconstruction as they come
// out of the external decoder and exception-table reader.
//
// An Instruction is a decoded instruction at a byte offset within one method
// body. Its Kind is a closed enumeration; the kind alone decides whether the
// instruction continues in sequence and how its branch targets are resolved.
// Nothing here interprets operands.
//
// A TryRegion is one entry of the method's exception table: a guarded byte
// range with its typed handlers and optional catch-all handler.
//
// Methods can be read from a textual listing, which serves as a stand-in for
// the decoder in fixtures and in the apkre command:
//
//	.method Lfoo;->bar()V 0x000a
//	0x0000 2 const/4
//	0x0002 2 if-eqz -> 0x0008
//	0x0004 2 goto -> 0x0000
//	0x0006 2 return-void
//	0x0008 2 return-void
//	.try 0x0000 0x0006 catch Ljava/lang/Exception; 0x0008
//	.end
//
// Listings can also be bundled as members of a txtar archive.
package bytecode
