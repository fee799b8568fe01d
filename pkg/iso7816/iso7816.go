/*
Package iso7816 implements the APDU layer of ISO/IEC 7816-4 for both ends of
the interface: the host that builds commands and reads reports, and the card
that parses commands and frames responses.

# Exchanges

A Command APDU is a header (CLA INS P1 P2) with an optional body (Lc, data)
and an optional Le. The card answers with optional data followed by SW1 SW2.
A single logical operation can take several exchanges: '61 XX' asks the host
to fetch XX bytes with GET RESPONSE and '6C XX' to resend with Le = XX. The
Client follows both and records every step in a Trace.

# Status Words

  - 9000: success.
  - 61XX: success, XX bytes still to fetch.
  - 6CXX: wrong Le, XX is the right one.
  - 62XX to 6FXX: warnings and errors; Verbose names the known ones.

StatusWord aliases such as SW_ERR_FILE_FULL name the codes by the condition
a card reports with them.

# Selection

SelectByAID and SelectMF build SELECT commands. SelectResult turns the trace
into a report and ParseSelectData decodes the returned FCI, FCP or FMD,
including wrapper-less answers and FCI templates whose length byte claims
more than the card sent.

# Data Objects

PUT DATA (0xDB) and GET DATA (0xCB) address BER-TLV data objects held by a
file. P1 is '3F' and P2 names the target: '00' for the Master File, 'FF' for
the current DF. DataResult reports on the exchange.

# Card Side

ParseCommandAPDU decodes a raw C-APDU as a card receives it, keeping
reserved CLA and INS values so the card can reject them with a status word.
ResponseAPDU.Bytes produces the wire response.

# Example

	client := iso7816.NewClient(card)
	cls, _ := iso7816.NewClass(0x00)

	trace, err := client.Send(iso7816.SelectByAID(cls, aid))
	if err != nil {
	    return err
	}
	result, _ := iso7816.NewSelectResult(trace)
	fmt.Println(result.Describe())

	if fci, err := result.FCI(); err == nil && fci != nil {
	    fmt.Printf("Selected %X (file %X)\n", fci.AID(), fci.FileIdentifier())
	}
*/
package iso7816
