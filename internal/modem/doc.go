// Package modem implements the WWAN radio-enable fallback chain.
//
// Some modem firmwares (notably the Fibocom parts in docomo-branded
// ThinkPads) come out of suspend or cold boot with their software radio
// flag stuck off, and ignore the polite way of turning it back on. The
// chain escalates through progressively more invasive methods, stopping
// at the first one that works:
//
//  1. standard radio-on through the mbim-proxy, ModemManager running
//  2. ModemManager stopped, radio-on directly against the device,
//     across the three MBIMEx negotiation variants
//  3. radio toggled off then on (same variants)
//  4. vendor (Quectel service) radio-on command (same variants)
//  5. raw AT+CFUN commands written to the modem's AT port
//  6. hardware reset via a sysfs trigger, wait for the device node to
//     come back, then one rerun of the chain
//
// After every attempt the radio state is re-queried by parsing the
// "Hardware radio state" / "Software radio state" fields out of
// mbimcli's diagnostic output. Individual command failures and timeouts
// are non-fatal and fall through to the next method; only exhausting
// the whole chain is reported as an error. Pauses between steps are
// fixed at a couple of seconds — there is no backoff or jitter, the
// firmware just needs settling time, and a hardware-blocked radio
// (physical kill switch) aborts immediately since no software method
// can clear it.
package modem
