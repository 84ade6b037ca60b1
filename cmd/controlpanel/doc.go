// Command controlpanel bridges an organ console's serial link to a MIDI
// voice engine.
//
// Run without a subcommand it opens the console's serial device and a MIDI
// port (a virtual one named "Control Panel" unless configured otherwise) and
// forwards every stop, coupler, piston, expression and panel setting change
// until it is interrupted or a device fails. The layout, ports, frame and
// config subcommands help setting up a console.
package main
