/*
Package applet implements the command-processing core of an ISO/IEC 7816-4
card application: a tag-addressed data store reached through APDUs.

# Lifecycle

Install creates the Master File (FID '3F00') and records the application
identifier, which doubles as the MF's DF name. The applet then waits for a
selection event. Selecting answers with the File Control Information of the
MF and makes the applet ready for instructions.

	AwaitingSelection --(selection, SW 9000)--> Ready
	Ready --(Deselect)--> AwaitingSelection

# Instructions

  - PUT DATA (INS 'DB'): P1 = '3F', P2 = '00' (MF) or 'FF' (current DF). The
    body is a sequence of TLV records, each stored with find-or-create
    semantics.
  - GET DATA (INS 'CB'): same addressing, body is one tag. Only answered when
    Options.GetData is set.

Every failure leaves Process as a status word. Panics raised while a command
runs are recovered and reported as '6F00'.

# Transport

The applet never touches raw bytes from a reader. A transport implements
Exchange; CommandExchange adapts an already parsed iso7816.CommandAPDU.
*/
package applet
