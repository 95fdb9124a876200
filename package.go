//
// web service fronting two thin layers of a learning management system.
// The reporter endpoints hand learners' result files and the test's
// content package to an external reporting service over soap and return
// either the computed outcome values or a link into the reporter's pages.
// The portfolio endpoints decide what the portfolio task panel of a
// course node shows: take a new copy of the task, or open the copy
// already taken together with its deadline and assessment details.
//
package otfreporter
