// Package geom implements the geometric constraint and attraction library.
//
// Everything here is a pure function of its inputs. Shapes participate by
// exposing a NearestPointFunc; the attraction algorithms choose among
// candidates using squared distance measured in axis-scaled units, so a
// graph whose x axis spans 100 and y axis spans 0.1 treats a step of 1 in x
// like a step of 0.001 in y.
package geom
