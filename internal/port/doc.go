// Package port checks host port availability for containerized launches.
//
// Ports published with "docker run -p" must be free on the host, otherwise
// docker fails after the image build with a bind error that is easy to
// miss. The Scanner asks the OS directly via net.Listen / net.ListenPacket
// so the conflict is reported before anything starts.
package port
