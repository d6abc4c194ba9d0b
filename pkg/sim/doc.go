// Package sim is a small deterministic VR scene used as the simulation a
// session records and replays.
//
// The scene holds rigid objects, some with a toggle button, and a VrAgent
// made of body, hand and eye parts that follows a scripted VR device. It is
// kinematic: objects move by their velocity and nothing collides. Every
// entity can dump and load its own versioned state blob, and World combines
// them into one full-state snapshot.
package sim
