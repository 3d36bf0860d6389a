/*
Package iso7816 implements the ISO/IEC 7816-4 APDU layer seen by an in-path relay.

A relay sits between a terminal and a card and observes both legs of every
exchange. This package gives it the minimum it needs to make sense of a frame:

  - Terminal to card: a Command APDU. ParseCommandAPDU decodes the header
    (CLA, INS, P1, P2) and the Lc/Le body in both short and extended form, so
    the relay knows which response is about to come back (SELECT, GET
    PROCESSING OPTIONS, GENERATE AC...).
  - Card to terminal: a Response APDU. ParseResponseAPDU splits the data field
    from the SW1-SW2 trailer and ResponseAPDU.Bytes puts them back together,
    so a mutated data field can be re-framed with the card's own status word.

# Status Words

Every response ends with a 2-byte Status Word (SW).
  - 0x9000: Success (OK).
  - 0x61XX: Success, but response data is still available (XX bytes).
  - 0x6CXX: Error, wrong length expectation (XX is the correct length).
  - Other: Various error conditions.

# EMV proprietary commands

EMV payment commands use the proprietary class (CLA '80'): GET PROCESSING
OPTIONS is '80 A8' and GENERATE APPLICATION CRYPTOGRAM is '80 AE'. Both
instruction codes are listed alongside the interindustry ones.

# Usage Example: Re-framing a mutated response

	resp, err := iso7816.ParseResponseAPDU(frame)
	if err != nil {
	    return err
	}
	if resp.Status.IsSuccess() {
	    resp.Data = mutate(resp.Data)
	}
	forward(resp.Bytes())
*/
package iso7816
